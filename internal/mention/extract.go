// Package mention finds the user a command is aimed at from the message's
// entity list and splits off the text that follows the mention.
package mention

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wilicw/daaninfobot/internal/telegram"
)

var (
	ErrNoMention    = errors.New("mention: no user mention found")
	ErrMissingTitle = errors.New("mention: missing title text")
	ErrNoResolver   = errors.New("mention: username lookup unavailable")
)

// ResolutionError reports a bare @username that could not be turned into a
// user id. Err is nil when the name simply does not exist.
type ResolutionError struct {
	Username string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mention: @%s does not resolve to a user", e.Username)
	}
	return fmt.Sprintf("mention: resolve @%s: %v", e.Username, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

type Kind int

const (
	// KindBare is an @username the service has not bound to an id.
	KindBare Kind = iota + 1
	// KindResolved carries the user id already.
	KindResolved
)

type Entity struct {
	Kind   Kind
	Offset int
	Length int
	UserID int64 // KindResolved only
}

// EntitiesFromTelegram keeps mention-kind entities in order and drops the rest.
func EntitiesFromTelegram(in []telegram.Entity) []Entity {
	out := make([]Entity, 0, len(in))
	for _, e := range in {
		switch e.Type {
		case telegram.EntityMention:
			out = append(out, Entity{Kind: KindBare, Offset: e.Offset, Length: e.Length})
		case telegram.EntityTextMention:
			if e.User == nil {
				continue
			}
			out = append(out, Entity{Kind: KindResolved, Offset: e.Offset, Length: e.Length, UserID: e.User.ID})
		}
	}
	return out
}

type Target struct {
	ID          int64
	DisplayName string
}

// Resolver looks a username up. ok=false means the name does not exist; an
// error means the lookup itself failed.
type Resolver interface {
	ResolveUsername(ctx context.Context, username string) (id int64, ok bool, err error)
}

type Mode int

const (
	// TitleRequired fails with ErrMissingTitle when nothing follows the mention.
	TitleRequired Mode = iota
	// TitleIgnored discards whatever follows the mention.
	TitleIgnored
)

type Result struct {
	Target Target
	Title  string
}

type Extractor struct {
	resolver Resolver
}

func NewExtractor(resolver Resolver) *Extractor {
	return &Extractor{resolver: resolver}
}

// Extract picks the first mention entity in text. Offsets are UTF-16 units.
// The title is checked before any username lookup so a malformed command
// never costs a remote call.
func (x *Extractor) Extract(ctx context.Context, text string, entities []Entity, mode Mode) (Result, error) {
	idx := NewIndex(text)
	for _, e := range entities {
		if e.Kind != KindBare && e.Kind != KindResolved {
			continue
		}
		span, ok := idx.Slice(e.Offset, e.Length)
		if !ok || span == "" {
			continue
		}
		rest, _ := idx.From(e.Offset + e.Length)

		var res Result
		if mode == TitleRequired {
			res.Title = strings.TrimSpace(rest)
			if res.Title == "" {
				return Result{}, ErrMissingTitle
			}
		}

		if e.Kind == KindResolved {
			res.Target = Target{ID: e.UserID, DisplayName: span}
			return res, nil
		}

		username := strings.TrimPrefix(span, "@")
		if username == "" {
			continue
		}
		id, err := x.resolve(ctx, username)
		if err != nil {
			return Result{}, err
		}
		res.Target = Target{ID: id, DisplayName: username}
		return res, nil
	}
	return Result{}, ErrNoMention
}

func (x *Extractor) resolve(ctx context.Context, username string) (int64, error) {
	if x == nil || x.resolver == nil {
		return 0, &ResolutionError{Username: username, Err: ErrNoResolver}
	}
	id, ok, err := x.resolver.ResolveUsername(ctx, username)
	if err != nil {
		return 0, &ResolutionError{Username: username, Err: err}
	}
	if !ok || id == 0 {
		return 0, &ResolutionError{Username: username}
	}
	return id, nil
}
