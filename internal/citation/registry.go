// Package citation allocates and tracks the citation identifiers that tie
// research paragraphs back to the sources that support them.
//
// Identifiers follow a fixed grammar: the letter "C" followed by exactly
// three digits (C001-C999). The Registry hands out new identifiers
// monotonically and keeps allocating past the highest identifier it has
// seen, so identifiers registered out of sequence never collide with
// generated ones.
package citation

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// ErrInvalidID reports a citation identifier that does not match the
// C + three digits grammar.
var ErrInvalidID = errors.New("citation: id must be C followed by three digits")

var (
	// idPattern is the exact identifier grammar.
	idPattern = regexp.MustCompile(`^C\d{3}$`)

	// groupPattern captures the contents of parenthesized groups, which is
	// where inline citations live, e.g. "(C001)" or "(C001, C002)".
	groupPattern = regexp.MustCompile(`\(([^)]*)\)`)

	// idToken matches identifiers inside a captured group. The trailing \b
	// keeps C0012 from matching as C001.
	idToken = regexp.MustCompile(`C\d{3}\b`)
)

// Citation records one registered source.
type Citation struct {
	// ID is the citation identifier, e.g. "C001".
	ID string `json:"cid"`
	// URL is the source location.
	URL string `json:"url"`
	// Title is the source's display title.
	Title string `json:"title"`
	// Locator narrows the reference within the source. For whole-document
	// citations it is the source URL itself.
	Locator string `json:"locator"`
	// FetchedAt is when the cited content was acquired.
	FetchedAt time.Time `json:"fetched_at"`
	// QuoteHash fingerprints the supporting quote, when one was captured.
	QuoteHash string `json:"quote_hash,omitempty"`
	// LocalPath points at an on-disk copy of the source, when one exists.
	LocalPath string `json:"local_path,omitempty"`
}

// Registry is a thread-safe collection of citations for a single run.
//
// The registry tracks the highest identifier sequence number it has seen so
// that NextID always allocates past every registered identifier, even when
// identifiers arrive out of order.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]Citation
	order  []Citation
	maxSeq int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Citation),
	}
}

// Reset discards all registered citations and restarts the identifier
// sequence at C001.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]Citation)
	r.order = nil
	r.maxSeq = 0
}

// Register records a citation under id and returns the stored record.
// The id must match the C + three digits grammar. Registering an id that is
// already present overwrites the lookup entry while keeping both records in
// registration order.
func (r *Registry) Register(id, url, title, locator, quote string) (Citation, error) {
	if !idPattern.MatchString(id) {
		return Citation{}, fmt.Errorf("%w: got %q", ErrInvalidID, id)
	}

	c := Citation{
		ID:        id,
		URL:       url,
		Title:     title,
		Locator:   locator,
		FetchedAt: time.Now().UTC(),
	}
	if quote != "" {
		c.QuoteHash = hashQuote(quote)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, c)
	r.byID[id] = c
	if seq, err := strconv.Atoi(id[1:]); err == nil && seq > r.maxSeq {
		r.maxSeq = seq
	}
	return c, nil
}

// NextID allocates the next citation identifier in sequence. The sequence
// continues from the highest identifier seen so far, so a registry that holds
// C010 hands out C011 next regardless of how many citations it contains.
func (r *Registry) NextID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxSeq++
	return fmt.Sprintf("C%03d", r.maxSeq)
}

// Lookup returns the citation registered under id.
func (r *Registry) Lookup(id string) (Citation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// All returns the registered citations in registration order. The returned
// slice is a copy.
func (r *Registry) All() []Citation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Citation, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports how many citations have been registered, counting repeats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// FindReferences extracts every citation identifier that appears inside a
// parenthesized group in text, in order of appearance. Identifiers outside
// parentheses are not references and are ignored.
func FindReferences(text string) []string {
	var refs []string
	for _, group := range groupPattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, idToken.FindAllString(group[1], -1)...)
	}
	return refs
}

// Validate splits the references found in text into those registered here
// and those that are not.
func (r *Registry) Validate(text string) (valid, unknown []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ref := range FindReferences(text) {
		if _, ok := r.byID[ref]; ok {
			valid = append(valid, ref)
		} else {
			unknown = append(unknown, ref)
		}
	}
	return valid, unknown
}

// hashQuote returns a short stable fingerprint for a supporting quote.
func hashQuote(quote string) string {
	sum := md5.Sum([]byte(quote))
	return hex.EncodeToString(sum[:])[:16]
}
