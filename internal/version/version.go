package version

const (
	AppName     = "WavePilot"
	AppVersion  = "0.3.1"
	Description = "Discord voice bot with a navigable playback queue"
)
