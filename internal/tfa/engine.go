// Two-factor code issuance and verification service
// Service d'émission et de vérification de codes à deux facteurs
package tfa

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	codeTimeout  = 90 * time.Second  // code validity window after the last request
	keyTimeout   = 600 * time.Second // full registration lifetime before a key is forgotten
	requestLimit = 5                 // registrations allowed before a cooldown kicks in
	maxTokens    = 5                 // token versions issuable per registration
)

type requestKind int

const (
	reqRegister requestKind = iota
	reqDeregister
	reqVerify
)

type request struct {
	kind  requestKind
	key   string
	code  uint32
	reply chan response
}

// Response carries the outcome of a Register/Deregister/Verify call back to
// the caller, one success field and Err mutually exclusive.
type Response struct {
	Code  uint32
	Token string
	Err   error
}

type response = Response

// Service is a handle to the running actor: every public method sends a
// request over a channel and waits on a dedicated reply channel, so callers
// never touch the storage map directly and no locking is needed inside it.
type Service struct {
	requests chan request
}

// Run starts the actor goroutine and returns a handle to it. The actor owns
// its storage map for its entire lifetime; there is no Stop, matching the
// teacher's services, which run for the life of the process.
func Run() *Service {
	s := &Service{requests: make(chan request)}
	go runStorage(s.requests)
	return s
}

// Register creates or refreshes a registration for key and returns the code
// the caller must deliver out-of-band (SMS/email/authenticator app) for the
// holder to submit back via Verify.
func (s *Service) Register(key string) (uint32, error) {
	reply := make(chan response)
	s.requests <- request{kind: reqRegister, key: key, reply: reply}
	r := <-reply
	return r.Code, r.Err
}

// Deregister forgets key immediately.
func (s *Service) Deregister(key string) error {
	reply := make(chan response)
	s.requests <- request{kind: reqDeregister, key: key, reply: reply}
	r := <-reply
	return r.Err
}

// Verify checks code against key's current registration and, on success,
// issues an opaque bearer token.
func (s *Service) Verify(key string, code uint32) (string, error) {
	reply := make(chan response)
	s.requests <- request{kind: reqVerify, key: key, code: code, reply: reply}
	r := <-reply
	return r.Token, r.Err
}

// TooManyRegisterRequests is returned by Register/Verify when a key has
// exceeded requestLimit registrations and is still inside its cooldown.
type TooManyRegisterRequests struct{ RemainingCooldown time.Duration }

func (e *TooManyRegisterRequests) Error() string {
	return fmt.Sprintf("too many registration requests, retry in %s", e.RemainingCooldown)
}

// ErrTooManyTokenRequests is returned by Verify once a key has exhausted its
// token issuance budget (maxTokens) for the current registration.
var ErrTooManyTokenRequests = fmt.Errorf("too many token requests for this registration")

// ErrCodeExpired is returned by Verify once codeTimeout has elapsed since
// the last request against a key.
var ErrCodeExpired = fmt.Errorf("code expired")

// ErrInvalidCode is returned by Verify when code does not match the
// key's current registration.
var ErrInvalidCode = fmt.Errorf("invalid code")

// ErrNotFound is returned by Verify for a key with no live registration.
var ErrNotFound = fmt.Errorf("registration not found")

type entry struct {
	log          []time.Time
	code         uint32
	tokenVersion int
	token        string
}

func newEntry() *entry {
	return &entry{log: []time.Time{time.Now()}, code: randomCode()}
}

func randomCode() uint32 {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		// crypto/rand failure means the host's entropy source is broken;
		// there is no safe fallback for an authentication code.
		panic(fmt.Sprintf("tfa: crypto/rand unavailable: %v", err))
	}
	return uint32(n.Int64())
}

func (e *entry) tooManyRegisterRequests() bool { return len(e.log) > requestLimit }

func (e *entry) elapsedSinceLastRequest() time.Duration { return time.Since(e.log[len(e.log)-1]) }

func (e *entry) elapsedSinceCreation() time.Duration { return time.Since(e.log[0]) }

func (e *entry) isCodeExpired() bool { return e.elapsedSinceLastRequest() > codeTimeout }

func runStorage(requests chan request) {
	storage := make(map[string]*entry, 1000)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case req := <-requests:
			handle(storage, req)
		case <-ticker.C:
			flushExpired(storage)
		}
	}
}

func handle(storage map[string]*entry, req request) {
	switch req.kind {
	case reqRegister:
		handleRegister(storage, req)
	case reqDeregister:
		delete(storage, req.key)
		req.reply <- response{}
	case reqVerify:
		handleVerify(storage, req)
	}
}

func handleRegister(storage map[string]*entry, req request) {
	e, ok := storage[req.key]
	if !ok {
		e = newEntry()
		storage[req.key] = e
		req.reply <- response{Code: e.code}
		return
	}

	if e.tooManyRegisterRequests() {
		remaining := keyTimeout - e.elapsedSinceCreation()
		if remaining > 0 {
			req.reply <- response{Err: &TooManyRegisterRequests{RemainingCooldown: remaining}}
			return
		}
		e.log = e.log[:0]
		e.token = ""
		e.tokenVersion = 0
	}

	e.log = append(e.log, time.Now())
	e.code = randomCode()
	req.reply <- response{Code: e.code}
}

func handleVerify(storage map[string]*entry, req request) {
	e, ok := storage[req.key]
	if !ok {
		req.reply <- response{Err: ErrNotFound}
		return
	}
	if e.code != req.code {
		req.reply <- response{Err: ErrInvalidCode}
		return
	}
	if e.tooManyRegisterRequests() {
		req.reply <- response{Err: &TooManyRegisterRequests{RemainingCooldown: keyTimeout}}
		return
	}
	if e.isCodeExpired() {
		req.reply <- response{Err: ErrCodeExpired}
		return
	}
	if e.tokenVersion >= maxTokens {
		req.reply <- response{Err: ErrTooManyTokenRequests}
		return
	}
	e.tokenVersion++
	if e.tokenVersion == 1 {
		e.token = uuid.NewString()
	}
	req.reply <- response{Token: e.token}
}

func flushExpired(storage map[string]*entry) {
	for key, e := range storage {
		if e.elapsedSinceCreation() > keyTimeout {
			delete(storage, key)
			continue
		}
		if e.isCodeExpired() {
			e.token = ""
			e.tokenVersion = 0
		}
	}
}
