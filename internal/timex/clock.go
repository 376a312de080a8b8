package timex

import "time"

// Clock abstracts the ambient current time. Lock expiry, session timeout,
// and TOTP stepping all read time through it so tests can inject a fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns a Clock backed by time.Now.
func Real() Clock { return realClock{} }
