package parser

// Options controls how comments are bound to declarations
type Options struct {
	// DocOnly binds only doc-comment variants ("/**", "///", docstrings)
	// for languages that have them
	DocOnly bool
	// AttachAfterStatements keeps comment runs that directly follow a
	// statement line. By default such runs are treated as annotations of
	// the statement above them.
	AttachAfterStatements bool
}

// Extractor extracts documentation bindings from source text. It holds no
// per-file state and is safe for concurrent use.
type Extractor struct {
	registry *LanguageRegistry
	opts     Options
}

// NewExtractor creates an extractor over a language registry. A nil
// registry means the built-in grammars.
func NewExtractor(registry *LanguageRegistry, opts Options) *Extractor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Extractor{registry: registry, opts: opts}
}

// Registry returns the extractor's language registry
func (e *Extractor) Registry() *LanguageRegistry {
	return e.registry
}

// Extract binds every declaration in source to its documentation. It fails
// only when the language tag has no grammar; every other problem is
// reported in Result.Warnings.
func (e *Extractor) Extract(source, languageTag string) (*Result, error) {
	g, err := e.registry.Lookup(languageTag)
	if err != nil {
		return nil, err
	}
	return e.ExtractWithGrammar(source, g), nil
}

// ExtractWithGrammar runs the tokenize, detect and associate pipeline
func (e *Extractor) ExtractWithGrammar(source string, g *LanguageGrammar) *Result {
	tokens, warnings := Tokenize(source, g)
	sites := DetectDeclarations(tokens, g)

	a := newAssociator(tokens, g, e.opts)
	bindings := a.bindAll(sites)

	return &Result{
		Language: g.Name,
		FileDoc:  a.fileDoc(),
		Bindings: bindings,
		Warnings: warnings,
	}
}

// Extract runs extraction with the built-in grammars and default options
func Extract(source, languageTag string) (*Result, error) {
	return NewExtractor(nil, Options{}).Extract(source, languageTag)
}
