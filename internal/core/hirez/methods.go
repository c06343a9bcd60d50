package hirez

import "context"

// DataUsed reports the developer's API quota consumption.
type DataUsed struct {
	ActiveSessions     int     `json:"Active_Sessions" yaml:"active_sessions"`
	ConcurrentSessions int     `json:"Concurrent_Sessions" yaml:"concurrent_sessions"`
	RequestLimitDaily  int     `json:"Request_Limit_Daily" yaml:"request_limit_daily"`
	SessionCap         int     `json:"Session_Cap" yaml:"session_cap"`
	SessionTimeLimit   int     `json:"Session_Time_Limit" yaml:"session_time_limit"`
	TotalRequestsToday int     `json:"Total_Requests_Today" yaml:"total_requests_today"`
	TotalSessionsToday int     `json:"Total_Sessions_Today" yaml:"total_sessions_today"`
	RetMsg             *string `json:"ret_msg" yaml:"ret_msg,omitempty"`
}

// ServerStatus describes one environment of the game servers.
type ServerStatus struct {
	EntryDatetime string  `json:"entry_datetime" yaml:"entry_datetime"`
	Environment   string  `json:"environment" yaml:"environment"`
	LimitedAccess bool    `json:"limited_access" yaml:"limited_access"`
	Platform      string  `json:"platform" yaml:"platform"`
	Status        string  `json:"status" yaml:"status"`
	Version       string  `json:"version" yaml:"version"`
	RetMsg        *string `json:"ret_msg" yaml:"ret_msg,omitempty"`
}

// PatchInfo carries the current game version.
type PatchInfo struct {
	VersionString string  `json:"version_string" yaml:"version_string"`
	RetMsg        *string `json:"ret_msg" yaml:"ret_msg,omitempty"`
}

// TestSession asks the API whether the cached session is still valid.
func (c *Client) TestSession(ctx context.Context) (string, error) {
	var text string
	if err := c.CallMethodInto(ctx, &text, MethodTestSession); err != nil {
		return "", err
	}
	return text, nil
}

// DataUsed returns quota usage for the developer id.
func (c *Client) DataUsed(ctx context.Context) ([]DataUsed, error) {
	var out []DataUsed
	if err := c.CallMethodInto(ctx, &out, "getdataused"); err != nil {
		return nil, err
	}
	return out, nil
}

// ServerStatus returns the status of each game server environment.
func (c *Client) ServerStatus(ctx context.Context) ([]ServerStatus, error) {
	var out []ServerStatus
	if err := c.CallMethodInto(ctx, &out, "gethirezserverstatus"); err != nil {
		return nil, err
	}
	return out, nil
}

// PatchInfo returns the current game version.
func (c *Client) PatchInfo(ctx context.Context) (*PatchInfo, error) {
	var out PatchInfo
	if err := c.CallMethodInto(ctx, &out, "getpatchinfo"); err != nil {
		return nil, err
	}
	return &out, nil
}
