package version

var Version = "0.0.0.0"

var CommitID = "unknown"

var BuildInfo = "unknown"
