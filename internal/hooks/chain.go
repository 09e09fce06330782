package hooks

// Chain applies hooks in order on Encrypt and in reverse order on Decrypt.
// Nil entries are skipped.
func Chain(hs ...Hook) Hook {
	kept := make([]Hook, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			kept = append(kept, h)
		}
	}
	switch len(kept) {
	case 0:
		return Identity{}
	case 1:
		return kept[0]
	}
	return chain(kept)
}

type chain []Hook

func (c chain) Encrypt(data []byte) ([]byte, error) {
	var err error
	for _, h := range c {
		if data, err = h.Encrypt(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (c chain) Decrypt(data []byte) ([]byte, error) {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		if data, err = c[i].Decrypt(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
