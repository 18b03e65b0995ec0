// Package record implements the self-describing binary wire format
// exchanged over the NFC transport: a one-byte tag followed by a
// msgpack-encoded map of named fields.
package record

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Tag identifies the concrete record type on the wire. Values match
// the bit layout fixed by the protocol: bits 7-6 give the direction
// (00 request, 10 success/announce, 11 failure), bits 5-3 the category
// and bits 2-0 the operation.
type Tag byte

const (
	TagAnnounce      Tag = 0b10_000_000
	TagVerify        Tag = 0b00_000_001
	TagVerifySuccess Tag = 0b10_000_001
	TagVerifyFailure Tag = 0b11_000_001
	TagEcho          Tag = 0b00_100_000
	TagEchoSuccess   Tag = 0b10_100_000
	TagQuery         Tag = 0b00_000_010
	TagQuerySuccess  Tag = 0b10_000_010
	TagQueryFailure  Tag = 0b11_000_010
	TagOpen          Tag = 0b00_000_011
	TagOpenSuccess   Tag = 0b10_000_011
	TagOpenFailure   Tag = 0b11_000_011
	TagClose         Tag = 0b00_000_100
	TagCloseSuccess  Tag = 0b10_000_100
	TagCloseFailure  Tag = 0b11_000_100
)

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(0x%02x)", byte(t))
}

var tagNames = map[Tag]string{
	TagAnnounce:      "Announce",
	TagVerify:        "Verify",
	TagVerifySuccess: "VerifySuccess",
	TagVerifyFailure: "VerifyFailure",
	TagEcho:          "Echo",
	TagEchoSuccess:   "EchoSuccess",
	TagQuery:         "Query",
	TagQuerySuccess:  "QuerySuccess",
	TagQueryFailure:  "QueryFailure",
	TagOpen:          "Open",
	TagOpenSuccess:   "OpenSuccess",
	TagOpenFailure:   "OpenFailure",
	TagClose:         "Close",
	TagCloseSuccess:  "CloseSuccess",
	TagCloseFailure:  "CloseFailure",
}

// Record is anything that can appear framed on the wire.
type Record interface {
	Tag() Tag
	fields() map[string]interface{}
}

// DecodeError reports a malformed or unrecognized record body.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "record: decode: " + e.Reason }

// Encode serializes a record to its wire form: tag byte + msgpack map.
func Encode(r Record) ([]byte, error) {
	body, err := msgpack.Marshal(r.fields())
	if err != nil {
		return nil, fmt.Errorf("record: encode %s: %w", r.Tag(), err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(r.Tag()))
	out = append(out, body...)
	return out, nil
}

// Decode parses a wire frame into its concrete Record. It rejects
// unknown tags, unknown fields, and missing required fields.
func Decode(data []byte) (Record, error) {
	if len(data) < 1 {
		return nil, &DecodeError{Reason: "empty frame"}
	}
	tag := Tag(data[0])
	factory, ok := registry[tag]
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown tag 0x%02x", data[0])}
	}

	var raw map[string]interface{}
	if len(data) > 1 {
		if err := msgpack.Unmarshal(data[1:], &raw); err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("malformed body: %v", err)}
		}
	}
	return factory(raw)
}

var registry = map[Tag]func(map[string]interface{}) (Record, error){
	TagAnnounce:      decodeAnnounce,
	TagVerify:        decodeVerify,
	TagVerifySuccess: decodeVerifySuccess,
	TagVerifyFailure: decodeVerifyFailure,
	TagEcho:          decodeEcho,
	TagEchoSuccess:   decodeEchoSuccess,
	TagQuery:         decodeQuery,
	TagQuerySuccess:  decodeQuerySuccess,
	TagQueryFailure:  decodeQueryFailure,
	TagOpen:          decodeOpen,
	TagOpenSuccess:   decodeOpenSuccess,
	TagOpenFailure:   decodeOpenFailure,
	TagClose:         decodeClose,
	TagCloseSuccess:  decodeCloseSuccess,
	TagCloseFailure:  decodeCloseFailure,
}

func stringField(raw map[string]interface{}, name string, required bool) (string, error) {
	v, ok := raw[name]
	if !ok {
		if required {
			return "", &DecodeError{Reason: fmt.Sprintf("missing required field %q", name)}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &DecodeError{Reason: fmt.Sprintf("field %q: expected string", name)}
	}
	return s, nil
}

func stringSliceField(raw map[string]interface{}, name string) ([]string, error) {
	v, ok := raw[name]
	if !ok {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("field %q: expected array", name)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, &DecodeError{Reason: fmt.Sprintf("field %q: expected array of strings", name)}
		}
		out = append(out, s)
	}
	return out, nil
}

func rejectUnknownFields(raw map[string]interface{}, known ...string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}
	for k := range raw {
		if _, ok := allowed[k]; !ok {
			return &DecodeError{Reason: fmt.Sprintf("unknown field %q", k)}
		}
	}
	return nil
}

// OpenCloseType enumerates the locker's physical actuation style, as
// advertised in Announce.
type OpenCloseType string

const (
	OpenTapClose       OpenCloseType = "open-tap-close"
	OpenPushClose      OpenCloseType = "open-push-close"
	OpenDelayPushClose OpenCloseType = "open-delay-push-close"
)

func validOpenCloseType(v string) bool {
	switch OpenCloseType(v) {
	case OpenTapClose, OpenPushClose, OpenDelayPushClose:
		return true
	}
	return false
}

// LockState is the locker's reported actuator state: "open" or
// "closed".
type LockState string

const (
	StateOpen   LockState = "open"
	StateClosed LockState = "closed"
)

func validLockState(v string) bool {
	switch LockState(v) {
	case StateOpen, StateClosed:
		return true
	}
	return false
}

// Announce is broadcast once per tap as the first frame of a session.
type Announce struct {
	ContractAddress string
	LockerID        string
	Name            string
	ImageURLs       []string
	OpenCloseType   OpenCloseType
}

func (a *Announce) Tag() Tag { return TagAnnounce }

func (a *Announce) fields() map[string]interface{} {
	return map[string]interface{}{
		"contract_address": a.ContractAddress,
		"locker_id":        a.LockerID,
		"name":             a.Name,
		"image_urls":       a.ImageURLs,
		"open_close_type":  string(a.OpenCloseType),
	}
}

// NewAnnounce validates open_close_type against its enum before
// construction, per the Announce record's field rules.
func NewAnnounce(contractAddress, lockerID, name string, imageURLs []string, openCloseType OpenCloseType) (*Announce, error) {
	if !validOpenCloseType(string(openCloseType)) {
		return nil, fmt.Errorf("record: invalid open_close_type %q", openCloseType)
	}
	return &Announce{
		ContractAddress: contractAddress,
		LockerID:        lockerID,
		Name:            name,
		ImageURLs:       imageURLs,
		OpenCloseType:   openCloseType,
	}, nil
}

func decodeAnnounce(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "contract_address", "locker_id", "name", "image_urls", "open_close_type"); err != nil {
		return nil, err
	}
	contractAddress, err := stringField(raw, "contract_address", true)
	if err != nil {
		return nil, err
	}
	lockerID, err := stringField(raw, "locker_id", true)
	if err != nil {
		return nil, err
	}
	name, err := stringField(raw, "name", true)
	if err != nil {
		return nil, err
	}
	imageURLs, err := stringSliceField(raw, "image_urls")
	if err != nil {
		return nil, err
	}
	openCloseType, err := stringField(raw, "open_close_type", true)
	if err != nil {
		return nil, err
	}
	if !validOpenCloseType(openCloseType) {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid open_close_type %q", openCloseType)}
	}
	return &Announce{
		ContractAddress: contractAddress,
		LockerID:        lockerID,
		Name:            name,
		ImageURLs:       imageURLs,
		OpenCloseType:   OpenCloseType(openCloseType),
	}, nil
}

// Verify requests authentication of a presented access token.
type Verify struct {
	Token string
}

func (v *Verify) Tag() Tag { return TagVerify }
func (v *Verify) fields() map[string]interface{} {
	return map[string]interface{}{"token": v.Token}
}
func decodeVerify(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "token"); err != nil {
		return nil, err
	}
	token, err := stringField(raw, "token", true)
	if err != nil {
		return nil, err
	}
	return &Verify{Token: token}, nil
}

// VerifySuccess has no fields; it confirms a token was accepted.
type VerifySuccess struct{}

func (v *VerifySuccess) Tag() Tag                       { return TagVerifySuccess }
func (v *VerifySuccess) fields() map[string]interface{} { return map[string]interface{}{} }
func decodeVerifySuccess(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw); err != nil {
		return nil, err
	}
	return &VerifySuccess{}, nil
}

// VerifyFailure reports why a token was rejected.
type VerifyFailure struct {
	Message string
}

func (v *VerifyFailure) Tag() Tag { return TagVerifyFailure }
func (v *VerifyFailure) fields() map[string]interface{} {
	return map[string]interface{}{"message": v.Message}
}
func decodeVerifyFailure(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "message"); err != nil {
		return nil, err
	}
	message, err := stringField(raw, "message", true)
	if err != nil {
		return nil, err
	}
	return &VerifyFailure{Message: message}, nil
}

// Echo is a liveness probe carrying an arbitrary message.
type Echo struct {
	Message string
}

func (e *Echo) Tag() Tag { return TagEcho }
func (e *Echo) fields() map[string]interface{} {
	return map[string]interface{}{"message": e.Message}
}
func decodeEcho(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "message"); err != nil {
		return nil, err
	}
	message, err := stringField(raw, "message", true)
	if err != nil {
		return nil, err
	}
	return &Echo{Message: message}, nil
}

// EchoSuccess echoes the probe's message back.
type EchoSuccess struct {
	Message string
}

func (e *EchoSuccess) Tag() Tag { return TagEchoSuccess }
func (e *EchoSuccess) fields() map[string]interface{} {
	return map[string]interface{}{"message": e.Message}
}
func decodeEchoSuccess(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "message"); err != nil {
		return nil, err
	}
	message, err := stringField(raw, "message", true)
	if err != nil {
		return nil, err
	}
	return &EchoSuccess{Message: message}, nil
}

// Query has no fields; it asks for the locker's current lock state.
type Query struct{}

func (q *Query) Tag() Tag                       { return TagQuery }
func (q *Query) fields() map[string]interface{} { return map[string]interface{}{} }
func decodeQuery(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw); err != nil {
		return nil, err
	}
	return &Query{}, nil
}

// QuerySuccess reports the current lock state.
type QuerySuccess struct {
	State LockState
}

func (q *QuerySuccess) Tag() Tag { return TagQuerySuccess }
func (q *QuerySuccess) fields() map[string]interface{} {
	return map[string]interface{}{"state": string(q.State)}
}
func decodeQuerySuccess(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "state"); err != nil {
		return nil, err
	}
	state, err := stringField(raw, "state", true)
	if err != nil {
		return nil, err
	}
	if !validLockState(state) {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid state %q", state)}
	}
	return &QuerySuccess{State: LockState(state)}, nil
}

// QueryFailure reports why a query was refused.
type QueryFailure struct {
	Message string
}

func (q *QueryFailure) Tag() Tag { return TagQueryFailure }
func (q *QueryFailure) fields() map[string]interface{} {
	return map[string]interface{}{"message": q.Message}
}
func decodeQueryFailure(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "message"); err != nil {
		return nil, err
	}
	message, err := stringField(raw, "message", true)
	if err != nil {
		return nil, err
	}
	return &QueryFailure{Message: message}, nil
}

// Open has no fields; it requests the locker unlock.
type Open struct{}

func (o *Open) Tag() Tag                       { return TagOpen }
func (o *Open) fields() map[string]interface{} { return map[string]interface{}{} }
func decodeOpen(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw); err != nil {
		return nil, err
	}
	return &Open{}, nil
}

// OpenSuccess reports the resulting lock state after opening.
type OpenSuccess struct {
	State LockState
}

func (o *OpenSuccess) Tag() Tag { return TagOpenSuccess }
func (o *OpenSuccess) fields() map[string]interface{} {
	return map[string]interface{}{"state": string(o.State)}
}
func decodeOpenSuccess(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "state"); err != nil {
		return nil, err
	}
	state, err := stringField(raw, "state", true)
	if err != nil {
		return nil, err
	}
	if !validLockState(state) {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid state %q", state)}
	}
	return &OpenSuccess{State: LockState(state)}, nil
}

// OpenFailure reports why an open was refused, plus the unchanged state.
type OpenFailure struct {
	Message string
	State   LockState
}

func (o *OpenFailure) Tag() Tag { return TagOpenFailure }
func (o *OpenFailure) fields() map[string]interface{} {
	return map[string]interface{}{"message": o.Message, "state": string(o.State)}
}
func decodeOpenFailure(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "message", "state"); err != nil {
		return nil, err
	}
	message, err := stringField(raw, "message", true)
	if err != nil {
		return nil, err
	}
	state, err := stringField(raw, "state", true)
	if err != nil {
		return nil, err
	}
	if !validLockState(state) {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid state %q", state)}
	}
	return &OpenFailure{Message: message, State: LockState(state)}, nil
}

// Close has no fields; it requests the locker lock.
type Close struct{}

func (c *Close) Tag() Tag                       { return TagClose }
func (c *Close) fields() map[string]interface{} { return map[string]interface{}{} }
func decodeClose(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw); err != nil {
		return nil, err
	}
	return &Close{}, nil
}

// CloseSuccess reports the resulting lock state after closing.
type CloseSuccess struct {
	State LockState
}

func (c *CloseSuccess) Tag() Tag { return TagCloseSuccess }
func (c *CloseSuccess) fields() map[string]interface{} {
	return map[string]interface{}{"state": string(c.State)}
}
func decodeCloseSuccess(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "state"); err != nil {
		return nil, err
	}
	state, err := stringField(raw, "state", true)
	if err != nil {
		return nil, err
	}
	if !validLockState(state) {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid state %q", state)}
	}
	return &CloseSuccess{State: LockState(state)}, nil
}

// CloseFailure reports why a close was refused, plus the unchanged state.
type CloseFailure struct {
	Message string
	State   LockState
}

func (c *CloseFailure) Tag() Tag { return TagCloseFailure }
func (c *CloseFailure) fields() map[string]interface{} {
	return map[string]interface{}{"message": c.Message, "state": string(c.State)}
}
func decodeCloseFailure(raw map[string]interface{}) (Record, error) {
	if err := rejectUnknownFields(raw, "message", "state"); err != nil {
		return nil, err
	}
	message, err := stringField(raw, "message", true)
	if err != nil {
		return nil, err
	}
	state, err := stringField(raw, "state", true)
	if err != nil {
		return nil, err
	}
	if !validLockState(state) {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid state %q", state)}
	}
	return &CloseFailure{Message: message, State: LockState(state)}, nil
}
