package try

// Fataler is something which can stop the world with a formatted message.
//
// *testing.T and *log.Logger of charmbracelet/log satisfy this.
type Fataler interface {
	Fatalf(format string, args ...any)
}

// Either wraps a pair of (T, error).
//
// When the error is nil, the Either is "ok" and T is valid.
// Otherwise it is "no good" and T must not be used.
type Either[T any] interface {
	// Get returns (value, nil) when ok, or (zero-value, error).
	Get() (T, error)

	// OrFatal returns the value when ok.
	//
	// Otherwise, it calls ftl.Fatalf with the error.
	// If ftl has "Helper()" method (like *testing.T), that is called before Fatalf.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value when ok, or d.
	OrDefault(d T) T
}

// Map converts the value when the Either is ok.
func Map[T any, R any](try Either[T], mapper func(T) R) Either[R] {
	val, err := try.Get()
	if err != nil {
		return tryNg[R]{err}
	}
	return tryOk[R]{mapper(val)}
}

func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return tryOk[T]{ok}
	}
	return tryNg[T]{ng}
}

type tryOk[T any] struct {
	value T
}

type tryNg[T any] struct {
	err error
}

func (ok tryOk[T]) Get() (T, error) {
	return ok.value, nil
}

func (ng tryNg[T]) Get() (T, error) {
	return *new(T), ng.err
}

func (ok tryOk[T]) OrDefault(T) T {
	return ok.value
}

func (ng tryNg[T]) OrDefault(d T) T {
	return d
}

func (ok tryOk[T]) OrFatal(Fataler) T {
	return ok.value
}

func (ng tryNg[T]) OrFatal(ftl Fataler) T {
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatalf("%+v", ng.err)

	return *new(T)
}
