package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ActionKind string

const (
	ActionBan    ActionKind = "ban"
	ActionRemove ActionKind = "remove"
	ActionFlag   ActionKind = "flag"
	ActionNotify ActionKind = "notify"
)

// A single enforcement step of a rule. The set of implementations is closed: see the *Action structs in this file.
type Action interface {
	Kind() ActionKind
	validate() []string
}

// Bans the owner of the matched content.
type BanAction struct {
	Reason string `json:"reason,omitempty"`
	// Zero means permanent.
	DurationSeconds int `json:"durationSeconds,omitempty"`
}

// Removes the matched content item.
type RemoveAction struct {
	Reason string `json:"reason,omitempty"`
}

// Adds a private flag to the target, which puts it in the human review queue.
type FlagAction struct {
	Flag string `json:"flag"`
}

const (
	NotifyOwner      = "owner"
	NotifyModerators = "moderators"
)

// Sends a message. Target is "owner" (the content owner), "moderators", or any other notifier-specific destination.
//
// The message may reference {rule}, {target}, and {owner}, which are substituted at execution time.
type NotifyAction struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

func (BanAction) Kind() ActionKind    { return ActionBan }
func (RemoveAction) Kind() ActionKind { return ActionRemove }
func (FlagAction) Kind() ActionKind   { return ActionFlag }
func (NotifyAction) Kind() ActionKind { return ActionNotify }

func (a BanAction) Duration() time.Duration {
	return time.Duration(a.DurationSeconds) * time.Second
}

func (a BanAction) validate() []string {
	if a.DurationSeconds < 0 {
		return []string{"ban action duration must not be negative"}
	}
	return nil
}

func (a RemoveAction) validate() []string {
	return nil
}

func (a FlagAction) validate() []string {
	if strings.TrimSpace(a.Flag) == "" {
		return []string{"flag action requires a flag value"}
	}
	return nil
}

func (a NotifyAction) validate() []string {
	errs := []string{}
	if strings.TrimSpace(a.Target) == "" {
		errs = append(errs, "notify action requires a target")
	}
	if strings.TrimSpace(a.Message) == "" {
		errs = append(errs, "notify action requires a message")
	}
	return errs
}

// Ordered list of actions, serialized as JSON objects with a "type" discriminator.
type ActionList []Action

func (l ActionList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, a := range l {
		b, err := marshalTagged(string(a.Kind()), a)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

func (l *ActionList) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	out := make(ActionList, 0, len(raws))
	for i, raw := range raws {
		kind, err := tagOf(raw)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		var a Action
		switch ActionKind(kind) {
		case ActionBan:
			var v BanAction
			err = json.Unmarshal(raw, &v)
			a = v
		case ActionRemove:
			var v RemoveAction
			err = json.Unmarshal(raw, &v)
			a = v
		case ActionFlag:
			var v FlagAction
			err = json.Unmarshal(raw, &v)
			a = v
		case ActionNotify:
			var v NotifyAction
			err = json.Unmarshal(raw, &v)
			a = v
		default:
			return fmt.Errorf("action %d: unknown action type %q", i, kind)
		}
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i, kind, err)
		}
		out = append(out, a)
	}
	*l = out
	return nil
}

// Kinds of all actions, in order.
func (l ActionList) Kinds() []string {
	out := make([]string, len(l))
	for i, a := range l {
		out[i] = string(a.Kind())
	}
	return out
}
