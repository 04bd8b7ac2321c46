package contract

// Describer is implemented by anything that can describe an endpoint:
// endpoints, bindings, and descriptors themselves.
type Describer interface {
	Describe() Descriptor
}

// Descriptor is a read-only, non-generic view of an endpoint. The
// documentation interpreter and the server's route table work on
// descriptors.
type Descriptor struct {
	Method   string
	Path     string
	Segments []Segment
	Inputs   []InputDesc
	Output   OutputDesc
	Errors   []ErrorDesc

	Summary     string
	Description string
	OperationID string
	Tags        []string
	Deprecated  bool

	// Err holds the endpoint's definition errors, if any.
	Err error
}

// Describe returns d.
func (d Descriptor) Describe() Descriptor { return d }

// Key identifies the (method, path) pair with variable names erased.
func (d Descriptor) Key() string { return routeKey(d.Method, d.Segments) }

// HasSecurity reports whether any input is a security input.
func (d Descriptor) HasSecurity() bool {
	for _, in := range d.Inputs {
		if in.Security != "" {
			return true
		}
	}
	return false
}
