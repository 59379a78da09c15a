package hermes

const (
	SubjectEvaluationRequest  = "kredit.evaluation.request"
	SubjectApplicantsArchived = "kredit.applicants.archived"
	SubjectPairwiseUpdated    = "kredit.criteria.pairwise.updated"

	StreamName   = "KREDIT_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// StreamSubjects are captured by the JetStream stream. Requests stay core NATS.
var StreamSubjects = []string{"kredit.evaluation.*.>", "kredit.applicants.>", "kredit.criteria.>"}

func SubjectEvaluationCompleted(runID string) string {
	return "kredit.evaluation." + runID + ".completed"
}

func SubjectEvaluationInconsistent(runID string) string {
	return "kredit.evaluation." + runID + ".inconsistent"
}

func SubjectEvaluationFailed(requestID string) string {
	return "kredit.evaluation." + requestID + ".failed"
}
