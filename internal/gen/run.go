package gen

import (
	"strconv"
	"strings"

	"github.com/mark3labs/camgen/internal/schema"
)

// Options tunes a generation run.
type Options struct {
	// ResponseOptional marks every response field optional instead of
	// mirroring the required flag.
	ResponseOptional bool
	Composition      Composition
}

// Run accumulates the declarations of one generation run. Names are unique
// across everything added to the same Run; separate runs share nothing.
type Run struct {
	opts     Options
	sources  map[string]string
	decls    []Declaration
	funcs    map[string]bool
	ops      []OperationDescriptor
	assemble Assembler
}

// NewRun starts an empty run.
func NewRun(opts Options) *Run {
	return &Run{
		opts:     opts,
		sources:  map[string]string{},
		funcs:    map[string]bool{},
		assemble: Assembler{ResponseOptional: opts.ResponseOptional, Composition: opts.Composition},
	}
}

// Add assembles op and records its declarations. A root whose declarations
// would reuse a name already holding different text is synthesized again
// under a numeric suffix; declarations identical to ones already recorded are
// shared. A function name already used in this run gets a numeric suffix too.
func (r *Run) Add(op schema.OperationSchema) OperationDescriptor {
	a := r.assemble.Assemble(op)
	d := a.Descriptor

	renamed := map[string]string{}
	for _, g := range a.Groups {
		placed := r.place(g)
		if placed.RootName != g.RootName {
			renamed[g.RootName] = placed.RootName
		}
	}
	if len(renamed) > 0 {
		for i, p := range d.Locations {
			if n, ok := renamed[p.Interface]; ok {
				d.Locations[i].Interface = n
			}
		}
		for i, p := range d.Responses {
			if n, ok := renamed[p.Interface]; ok {
				d.Responses[i].Interface = n
			}
		}
		d.compose(r.opts.Composition)
	}

	fn := d.FunctionName
	for n := 2; r.funcs[d.FunctionName]; n++ {
		d.FunctionName = fn + strconv.Itoa(n)
	}
	r.funcs[d.FunctionName] = true

	r.ops = append(r.ops, d)
	return d
}

func (r *Run) place(g Group) Group {
	for n := 1; ; n++ {
		cand := g
		if n > 1 {
			cand.Synthesis = g.synth.Synthesize(g.RootName+strconv.Itoa(n), g.params)
		}
		if r.conflicts(cand.Declarations) {
			continue
		}
		for _, d := range cand.Declarations {
			if _, ok := r.sources[d.Name]; ok {
				continue
			}
			r.sources[d.Name] = d.Source
			r.decls = append(r.decls, d)
		}
		return cand
	}
}

func (r *Run) conflicts(decls []Declaration) bool {
	for _, d := range decls {
		if src, ok := r.sources[d.Name]; ok && src != d.Source {
			return true
		}
	}
	return false
}

// Declarations returns every recorded declaration in the order it was added.
// Nested declarations precede the declarations that reference them.
func (r *Run) Declarations() []Declaration {
	return append([]Declaration(nil), r.decls...)
}

// Descriptors returns the descriptor of every added operation in order.
func (r *Run) Descriptors() []OperationDescriptor {
	return append([]OperationDescriptor(nil), r.ops...)
}

// TypesSource renders the types module of the run.
func (r *Run) TypesSource() string { return TypesSource(r.decls) }

// TypesSource joins declarations into one module, separated by blank lines.
func TypesSource(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.Source)
	}
	return strings.Join(parts, "\n")
}

// ServiceOutput is everything generated for one service.
type ServiceOutput struct {
	Service      string
	ClassName    string
	Declarations []Declaration
	Descriptors  []OperationDescriptor
	Class        ServiceClass
}

// TypesSource renders the types module.
func (o ServiceOutput) TypesSource() string { return TypesSource(o.Declarations) }

// Generate runs every operation of svc through a fresh Run and emits the
// service class.
func Generate(svc *schema.ServiceSchema, opts Options) ServiceOutput {
	r := NewRun(opts)
	for _, op := range svc.Operations {
		r.Add(op)
	}
	name := ServiceName(svc)
	class := EmitService(name, r.Descriptors())
	return ServiceOutput{
		Service:      name,
		ClassName:    class.Name,
		Declarations: r.Declarations(),
		Descriptors:  r.Descriptors(),
		Class:        class,
	}
}

// ServiceName is the name a service is generated under: its declared name,
// else its uuid, else "api".
func ServiceName(svc *schema.ServiceSchema) string {
	for _, s := range []string{svc.Name, svc.UUID} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "api"
}
