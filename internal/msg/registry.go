package msg

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tjst-t/go-ipmi/internal/codec"
)

// ErrUnknownMessage is returned when no type is registered for a lookup.
var ErrUnknownMessage = errors.New("unknown message")

// Factory returns a new, default-initialized message.
type Factory func() codec.Message

type key struct {
	netFn uint8
	cmd   uint8
	group codec.GroupExtension
}

// Registry maps (netfn, command, group extension) triples and message names
// to message factories. A registry is filled in one pass and only read
// afterwards; lookups may then run concurrently.
type Registry struct {
	byKey  map[key]Factory
	byName map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:  make(map[key]Factory),
		byName: make(map[string]Factory),
	}
}

// Register adds a single message type after validating its description.
func (r *Registry) Register(f Factory) error {
	m := f()
	if err := codec.Validate(m); err != nil {
		return err
	}
	id := m.Identity()
	k := key{netFn: id.NetFn, cmd: id.Command, group: id.Group}
	if _, ok := r.byKey[k]; ok {
		return &codec.DescriptionError{
			Message: id.Name,
			Reason:  fmt.Sprintf("duplicate netfn 0x%02x cmd 0x%02x group %s", id.NetFn, id.Command, id.Group),
		}
	}
	if _, ok := r.byName[id.Name]; ok {
		return &codec.DescriptionError{Message: id.Name, Reason: "duplicate name"}
	}
	r.byKey[k] = f
	r.byName[id.Name] = f
	return nil
}

// RegisterPair registers a request and its response, additionally checking
// that the two agree with each other.
func (r *Registry) RegisterPair(req, rsp Factory) error {
	qid, sid := req().Identity(), rsp().Identity()
	fail := func(reason string) error {
		return &codec.DescriptionError{Message: qid.Name, Reason: reason}
	}
	switch {
	case !strings.HasSuffix(qid.Name, "Req") || !strings.HasSuffix(sid.Name, "Rsp"):
		return fail("pair must be a Req and a Rsp")
	case strings.TrimSuffix(qid.Name, "Req") != strings.TrimSuffix(sid.Name, "Rsp"):
		return fail("response " + sid.Name + " does not match")
	case sid.NetFn != qid.NetFn|0x01:
		return fail(fmt.Sprintf("response netfn 0x%02x, want 0x%02x", sid.NetFn, qid.NetFn|0x01))
	case sid.Command != qid.Command:
		return fail(fmt.Sprintf("response command 0x%02x, want 0x%02x", sid.Command, qid.Command))
	case sid.Group != qid.Group:
		return fail("response group extension differs")
	}
	if err := r.Register(req); err != nil {
		return err
	}
	return r.Register(rsp)
}

// MustRegisterPair is like RegisterPair but panics on error.
func (r *Registry) MustRegisterPair(req, rsp Factory) {
	if err := r.RegisterPair(req, rsp); err != nil {
		panic(err)
	}
}

// Create returns a new message registered under the given triple.
func (r *Registry) Create(netFn, cmd uint8, group codec.GroupExtension) (codec.Message, error) {
	f, ok := r.byKey[key{netFn: netFn, cmd: cmd, group: group}]
	if !ok {
		return nil, &codec.DecodingError{
			Err: fmt.Errorf("%w: netfn 0x%02x cmd 0x%02x group %s", ErrUnknownMessage, netFn, cmd, group),
		}
	}
	return f(), nil
}

// CreateByName returns a new message registered under name.
func (r *Registry) CreateByName(name string) (codec.Message, error) {
	f, ok := r.byName[name]
	if !ok {
		return nil, &codec.DecodingError{Err: fmt.Errorf("%w: %q", ErrUnknownMessage, name)}
	}
	return f(), nil
}

// CreateResponse returns a new response matching req.
func (r *Registry) CreateResponse(req codec.Message) (codec.Response, error) {
	id := req.Identity()
	m, err := r.Create(id.NetFn|0x01, id.Command, id.Group)
	if err != nil {
		return nil, err
	}
	rsp, ok := m.(codec.Response)
	if !ok {
		return nil, fmt.Errorf("%s does not carry a completion code", m.Identity().Name)
	}
	return rsp, nil
}

// Names lists registered message names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of all builtin messages. It is built on first
// use and panics if a builtin description is invalid.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		for _, p := range builtin {
			r.MustRegisterPair(p.req, p.rsp)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

type pair struct {
	req, rsp Factory
}

// of returns a factory for the zero value of T.
func of[T any, PT interface {
	*T
	codec.Message
}]() Factory {
	return func() codec.Message { return PT(new(T)) }
}

func pairOf[Q, S any, PQ interface {
	*Q
	codec.Message
}, PS interface {
	*S
	codec.Message
}]() pair {
	return pair{req: of[Q, PQ](), rsp: of[S, PS]()}
}
