package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                string // connection string for the database
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	SQLLogLevel       string // sets the log level for sql subsystem
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, e.g. "info+:* debug+:strategy"
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry (empty: print to stdout)
	TeamDB            string // path to team profile file (json or yaml)
	TrackDB           string // path to track profile file (json or yaml)
	StrictProfiles    bool   // unknown teams and tracks are errors instead of defaults
	Team              string // team to simulate
	Track             string // track to simulate
	Rain              int    // rain probability in percent
	Laps              int    // race distance, 0 uses the track's lap count
	Seed              uint64 // seed for the random sources, 0 picks one
	Parallelism       int    // number of concurrent race simulations
	Repetitions       int    // races per candidate strategy
	NatsURL           string // url of the NATS server
	NatsSubject       string // base subject for published results
	NatsBucket        string // key value bucket for the latest report per track
	ServerAddr        string // listen addr for the HTTP server
)
