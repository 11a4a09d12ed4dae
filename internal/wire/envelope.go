package wire

import (
	"encoding/json"
)

// Kind selects which editor-side registry handles an envelope.
type Kind string

const (
	// KindCommand routes to the command sub-registry (the default).
	KindCommand Kind = ""
	// KindResource routes to the resource sub-registry.
	KindResource Kind = "resource"
	// KindRegistration marks a client identity-rewrite message.
	KindRegistration Kind = "registration"
)

// Status values carried on response envelopes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ClientInfo is the opaque, unvalidated metadata an editor client may attach
// to its registration message. Unrecognized fields are preserved in Extra so
// a forward-compatible editor can send fields this bridge doesn't know about
// without losing them on the round trip.
type ClientInfo struct {
	ProductName     string         `json:"productName,omitempty"`
	CompanyName     string         `json:"companyName,omitempty"`
	EngineVersion   string         `json:"engineVersion,omitempty"`
	Platform        string         `json:"platform,omitempty"`
	Mode            string         `json:"mode,omitempty"`
	DeviceName      string         `json:"deviceName,omitempty"`
	ProjectPath     string         `json:"projectPath,omitempty"`
	ProjectPathHash string         `json:"projectPathHash,omitempty"`
	Extra           map[string]any `json:"-"`
}

// clientInfoKnownFields lists the JSON keys with a dedicated struct field,
// used by UnmarshalJSON to decide what falls through into Extra.
var clientInfoKnownFields = map[string]bool{
	"productName":     true,
	"companyName":     true,
	"engineVersion":   true,
	"platform":        true,
	"mode":            true,
	"deviceName":      true,
	"projectPath":     true,
	"projectPathHash": true,
}

// MarshalJSON emits the known fields alongside whatever is in Extra, so a
// registration message can carry fields this bridge doesn't recognize
// without losing them on a re-encode (e.g. when the bridge itself forwards
// client metadata out to an MCP resource).
func (c ClientInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+8)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.ProductName != "" {
		out["productName"] = c.ProductName
	}
	if c.CompanyName != "" {
		out["companyName"] = c.CompanyName
	}
	if c.EngineVersion != "" {
		out["engineVersion"] = c.EngineVersion
	}
	if c.Platform != "" {
		out["platform"] = c.Platform
	}
	if c.Mode != "" {
		out["mode"] = c.Mode
	}
	if c.DeviceName != "" {
		out["deviceName"] = c.DeviceName
	}
	if c.ProjectPath != "" {
		out["projectPath"] = c.ProjectPath
	}
	if c.ProjectPathHash != "" {
		out["projectPathHash"] = c.ProjectPathHash
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the known fields into their struct fields and stows
// every unrecognized key in Extra.
func (c *ClientInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type knownFields ClientInfo
	var known knownFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	*c = ClientInfo(known)

	extra := make(map[string]any, len(raw))
	for k, v := range raw {
		if clientInfoKnownFields[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		extra[k] = val
	}
	if len(extra) > 0 {
		c.Extra = extra
	}
	return nil
}

// Envelope is the single JSON object exchanged per line on the TCP stream.
// All fields are optional unless the wire contract for a given message type
// requires them; see spec §3.
type Envelope struct {
	Command    string          `json:"command,omitempty"`
	Type       Kind            `json:"type,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	ID         string          `json:"id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Message    string          `json:"message,omitempty"`
	ClientID   string          `json:"clientId,omitempty"`
	ClientInfo *ClientInfo     `json:"clientInfo,omitempty"`
}

// IsResponse reports whether this envelope is a correlated response
// (carries an id and a status).
func (e *Envelope) IsResponse() bool {
	return e.ID != "" && e.Status != ""
}

// IsRegistration reports whether this envelope is a registration message.
func (e *Envelope) IsRegistration() bool {
	return e.Type == KindRegistration
}

// IsAsyncEvent reports whether this envelope carries no correlation id and
// is therefore not a request or a response — it is broadcast to subscribers.
func (e *Envelope) IsAsyncEvent() bool {
	return e.ID == "" && e.Command == "" && e.Type != KindRegistration
}

// Decode parses a raw wire message into an Envelope.
func Decode(raw json.RawMessage) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Encode serializes an Envelope to its wire form, without a trailing
// newline — callers append "\n" when writing to the socket (see
// spec §10's resolution of the open question on newline emission).
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
