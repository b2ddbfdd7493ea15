package service

// Broadcaster pushes live run events to a player's sockets (avoids import cycle with ws)
type Broadcaster interface {
	SendToUser(userID string, msgType string, payload interface{})
}

// Live run message types
const (
	MsgTick     = "tick"
	MsgState    = "state"
	MsgFinished = "finished"
)

type noopBroadcaster struct{}

func (noopBroadcaster) SendToUser(string, string, interface{}) {}
