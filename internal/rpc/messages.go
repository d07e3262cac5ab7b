package rpc

type Empty struct{}

type SetLinkActiveRequest struct {
	Active bool `json:"active"`
}

type BoolReply struct {
	Value bool `json:"value"`
}

type ActivateRequest struct {
	// TimeoutMs selects the daemon default when absent, zero is a valid timeout
	TimeoutMs *int64 `json:"timeout_ms,omitempty"`
}

type ActivateReply struct {
	Result string `json:"result"`
}

type StatusReply struct {
	State             string `json:"state"`
	HubPresent        bool   `json:"hub_present"`
	RetryCount        int    `json:"retry_count"`
	InitLock          bool   `json:"init_lock"`
	HandshakeDone     bool   `json:"handshake_done"`
	SuspendInProgress bool   `json:"suspend_in_progress"`
	BlockAutosuspend  bool   `json:"block_autosuspend"`
	RootHubHeld       bool   `json:"root_hub_held"`
	Connected         bool   `json:"connected"`
	LastError         string `json:"last_error,omitempty"`
}
