package exitcode

const (
	Success        = 0
	UsageError     = 1
	DBConnError    = 2
	PipelineFatal  = 3
	PartialSuccess = 4
)
