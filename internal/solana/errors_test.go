package solana

import (
	"errors"
	"testing"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrRateLimited, true},
		{ErrBlockhashNotFound, true},
		{ErrNodeUnavailable, true},
		{errors.New("Blockhash not found"), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("insufficient funds for rent"), false},
		{nil, false},
	}

	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
