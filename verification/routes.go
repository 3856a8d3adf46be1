package verification

// Navigation targets the client moves to after each flow step.
const (
	RouteStep2Verification    = "/step2-verification"
	RouteFacialRecord         = "/facial-record"
	RouteUploadError          = "/upload-error"
	RouteCertificateGenerated = "/certificate-generated"
	RouteLiveAgent            = "/live-agent"
	RouteDashboard            = "/Dashboard"
)

// RouteFor maps a terminal outcome to the screen the user is sent to.
func RouteFor(outcome Outcome) string {
	switch outcome {
	case OutcomeVerified:
		return RouteCertificateGenerated
	case OutcomeEscalated:
		return RouteLiveAgent
	default:
		return RouteDashboard
	}
}
