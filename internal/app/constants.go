package app

const (
	Name              = "midimon"
	SourceURL         = "https://github.com/skobkin/midimon"
	ConfigFilename    = "config.json"
	DBFilename        = "app.db"
	LogFilename       = "app.log"
	RecentHistoryLoad = 20
)
