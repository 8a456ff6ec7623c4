package domain

import (
	"errors"
	"fmt"
	"regexp"

	"focuskit/internal/modules/notify/dto"
)

type Kind string

const (
	KindStarted   Kind = dto.KindStarted
	KindCompleted Kind = dto.KindCompleted
	KindError     Kind = dto.KindError
)

func (k Kind) Validate() error {
	switch k {
	case KindStarted, KindCompleted, KindError:
		return nil
	default:
		return fmt.Errorf("unknown notification kind: %s", k)
	}
}

var (
	ErrNotifierDisabled = errors.New("notifier is disabled")
	ErrChecksumMismatch = errors.New("notifier checksum mismatch")
	ErrNotifierTimeout  = errors.New("notifier timeout")
)

type Message struct {
	Kind  Kind
	Title string
	Body  string
}

// Render turns a lifecycle event into the title and body handed to
// notifiers.
func Render(input dto.NotifyInput) (Message, error) {
	kind := Kind(input.Kind)
	if err := kind.Validate(); err != nil {
		return Message{}, err
	}
	msg := Message{Kind: kind}
	switch kind {
	case KindStarted:
		msg.Title = "Focus session started"
		msg.Body = fmt.Sprintf("%s on the clock", Clock(input.TargetSeconds))
	case KindCompleted:
		msg.Title = "Focus session complete"
		msg.Body = fmt.Sprintf("%d minutes of focus", input.ElapsedSeconds/60)
	case KindError:
		msg.Title = "Focus timer problem"
		msg.Body = input.Detail
		if msg.Body == "" {
			msg.Body = "the timer hit an error and kept running"
		}
	}
	if input.TaskRef != "" && kind != KindError {
		msg.Body += " (" + input.TaskRef + ")"
	}
	return msg, nil
}

// Clock formats whole seconds as mm:ss, or h:mm:ss past an hour.
func Clock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Manifest declares an external notifier binary.
type Manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Binary  string `json:"binary"`
	SHA256  string `json:"sha256"`
	Enabled bool   `json:"enabled"`
	Kinds   []Kind `json:"kinds"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("notifier name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("notifier version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("notifier binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("notifier sha256 must be lowercase 64-char hex")
	}
	seen := map[Kind]struct{}{}
	for _, kind := range m.Kinds {
		if err := kind.Validate(); err != nil {
			return err
		}
		if _, ok := seen[kind]; ok {
			return fmt.Errorf("duplicate kind: %s", kind)
		}
		seen[kind] = struct{}{}
	}
	return nil
}

// Accepts reports whether the notifier wants kind. No kinds means all.
func (m Manifest) Accepts(kind Kind) bool {
	return accepts(m.Kinds, kind)
}

func accepts(kinds []Kind, kind Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Route pairs a notifier name with the kinds it receives.
type Route struct {
	Name  string
	Kinds []Kind
}

func (r Route) Accepts(kind Kind) bool {
	return accepts(r.Kinds, kind)
}
