package localstore

// Keys persisted by the storefront client. Values are JSON.
const (
	KeyCart             = "cart"             // guest cart lines
	KeyCartMerged       = "cartMerged"       // guest cart already merged into the account
	KeyCheckoutComplete = "checkoutComplete" // an order was just placed; skip merge/fetch once
	KeyIsNewUser        = "isNewUser"        // written by sign-up, consumed on first sign-in
	KeyAuthTokens       = "authTokens"       // access/refresh token pair
	KeyUser             = "user"             // signed-in user profile
)
