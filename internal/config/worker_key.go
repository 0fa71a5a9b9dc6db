package config

type WorkerKeyStruct struct {
	GradingHandoffQueue string
	GradeResultsQueue   string
}

var WorkerKey = &WorkerKeyStruct{
	GradingHandoffQueue: "grading_handoff_queue",
	GradeResultsQueue:   "grade_results_queue",
}
