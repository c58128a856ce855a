package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithEnabled turns deduplication on or off. It is on by default; when off every
// id is new.
func WithEnabled(enabled bool) Option {
	return func(d *inMemoryDeduper) {
		d.disabled = !enabled
	}
}
