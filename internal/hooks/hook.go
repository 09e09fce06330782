// Package hooks defines the byte-transform contract applied to every payload
// the caches persist, together with the identity default, an LZ4 compressing
// transform and a combinator to stack transforms.
//
// Any Hook must satisfy Decrypt(Encrypt(x)) == x for every x, including
// zero-length input. The caches never look at transformed bytes.
package hooks

// Hook transforms bytes on their way to and from durable storage.
// cryptox.AESGCM is the encrypting implementation.
type Hook interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// Source yields the hook to use for one operation. The caches call it on
// every read and write and treat a nil result as Identity, so the owner of
// the hook can withdraw it at any time.
type Source func() Hook

// Static wraps a fixed hook (possibly nil) as a Source.
func Static(h Hook) Source {
	return func() Hook { return h }
}

// Resolve returns the hook produced by src, or Identity when src or its
// result is nil.
func Resolve(src Source) Hook {
	if src == nil {
		return Identity{}
	}
	if h := src(); h != nil {
		return h
	}
	return Identity{}
}

// Identity passes bytes through unchanged.
type Identity struct{}

func (Identity) Encrypt(data []byte) ([]byte, error) { return data, nil }
func (Identity) Decrypt(data []byte) ([]byte, error) { return data, nil }
