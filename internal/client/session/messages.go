package session

// User-facing notification texts.
const (
	msgInvalidCredentials = "Failed to login, please check your credentials."
	msgRateLimited        = "Too many failed login attempts, try again after %s."
	msgUnavailable        = "The platform cannot be reached, please try again later."
	msgNotEntitled        = "This account is not allowed to use telephony features."
	msgVaultMismatch      = "Your password does not open the local vault."
	msgVaultSetup         = "The local vault could not be opened."
	msgInvalidPassword    = "Invalid password."
	msgFirstRun           = "Welcome! Please review your settings first."
	msgWelcome            = "Welcome back, %s."
	msgFarewell           = "You are logged out."
)
