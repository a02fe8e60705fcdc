package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Session         Category = "Session"
	Transport       Category = "Transport"
	Negotiation     Category = "Negotiation"
	Game            Category = "Game"
	Media           Category = "Media"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Session
	Dispatch     SubCategory = "Dispatch"
	Intent       SubCategory = "Intent"
	StaleEvent   SubCategory = "StaleEvent"
	RoomSwitch   SubCategory = "RoomSwitch"
	Reconnect    SubCategory = "Reconnect"
	Timer        SubCategory = "Timer"
	IdentityGate SubCategory = "IdentityGate"

	// Transport
	Dial   SubCategory = "Dial"
	Send   SubCategory = "Send"
	Decode SubCategory = "Decode"

	// Negotiation
	Handshake SubCategory = "Handshake"
	Signaling SubCategory = "Signaling"

	// Game
	Snapshot  SubCategory = "Snapshot"
	Countdown SubCategory = "Countdown"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"
	EventName    ExtraKey = "Event"
	IntentName   ExtraKey = "Intent"
	CommandName  ExtraKey = "Command"
	RoomID       ExtraKey = "RoomID"
	PeerID       ExtraKey = "PeerID"
	CallID       ExtraKey = "CallID"
	Reason       ExtraKey = "Reason"
	Outcome      ExtraKey = "Outcome"
	Variant      ExtraKey = "Variant"
)
