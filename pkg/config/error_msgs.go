package config

const (
	RequestedRoomNotExist = "requested room does not exist"
	RoomNotActive         = "room is not active"
	OnlyAdminCanRequest   = "only admin can send this request"
	NoRoomIdInToken       = "no roomId in token"
	AgentNotActive        = "no active agent for this room"
	AssistantNotEnabled   = "assistant feature is not enabled"
	VerificationFailed    = "verification failed"
)
