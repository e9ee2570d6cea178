package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session + notifications
	RouteSession = "/api/auth/session"
	RouteEvents  = "/api/auth/events"

	// Hosted-UI redirect flow
	RouteLogin    = "/api/auth/login"
	RouteCallback = "/api/auth/callback"
	RouteLogout   = "/api/auth/logout"

	// Dialog operations
	RouteDialogState       = "/api/auth/dialog/state"
	RouteDialogOpen        = "/api/auth/dialog/open"
	RouteDialogClose       = "/api/auth/dialog/close"
	RouteDialogEmail       = "/api/auth/dialog/email"
	RouteDialogCode        = "/api/auth/dialog/code"
	RouteDialogConfirm     = "/api/auth/dialog/confirm"
	RouteDialogResend      = "/api/auth/dialog/resend"
	RouteDialogMethod      = "/api/auth/dialog/method"
	RouteDialogProfile     = "/api/auth/dialog/profile"
	RouteDialogProfileSkip = "/api/auth/dialog/profile/skip"
)

// tabCookieName keys dialog state per browser tab. Not HttpOnly so the page
// can pass it along with fetch requests; it carries no secrets.
const tabCookieName = "auth_tab"
