package parser

import "regexp"

func decl(kind DeclarationKind, priority int, scopes Scope, expr string) DeclPattern {
	return DeclPattern{Kind: kind, Pattern: regexp.MustCompile(expr), Priority: priority, Scopes: scopes}
}

func container(kind DeclarationKind, priority int, expr string) DeclPattern {
	p := decl(kind, priority, ScopeAny, expr)
	p.Container = true
	return p
}

// namespace opens a transparent scope: its members stay file level
func namespace(expr string) DeclPattern {
	return DeclPattern{Pattern: regexp.MustCompile(expr), Priority: 50, Scopes: ScopeAny, Silent: true}
}

func constructor(priority int, expr string) DeclPattern {
	p := decl(KindMethod, priority, ScopeMember, expr)
	p.Constructor = true
	return p
}

var (
	cStyleLine = []CommentMarker{{Prefix: "//"}}
	cStyleDocs = []BlockDelimiter{
		{Open: "/**", Close: "*/", Doc: true, Gutter: "*"},
		{Open: "/*", Close: "*/", Gutter: "*"},
	}

	controlKeywords = []string{
		"if", "else", "for", "while", "do", "switch", "case", "return", "break",
		"continue", "catch", "try", "throw", "new", "delete", "sizeof", "typeof",
		"await", "yield", "goto", "default", "function", "super", "this",
	}
)

const (
	jsIdent   = `[A-Za-z_$][\w$]*`
	jsExport  = `(?:export\s+)?(?:default\s+)?`
	tsMembers = `(?:(?:public|private|protected|static|readonly|abstract|async|override|declare|get|set)\s+)*`
	javaMods  = `(?:@[\w.]+(?:\([^)]*\))?\s+)*(?:(?:public|private|protected|static|final|abstract|synchronized|native|default|sealed|non-sealed|strictfp|transient|volatile)\s+)*`
	javaType  = `[\w.$]+(?:<.*>)?(?:\[\])*`
	csMods    = `(?:\[[^\]]*\]\s*)*(?:(?:public|private|protected|internal|static|readonly|sealed|abstract|virtual|override|async|partial|extern|unsafe|new|volatile)\s+)*`
	csType    = `[\w.]+(?:<.*>)?(?:\[[,\s]*\])*\??`
	cQuals    = `(?:(?:static|inline|extern|const|volatile|unsigned|signed|long|short|struct|enum|union|register)\s+)*`
	cppQuals  = `(?:(?:static|inline|virtual|explicit|constexpr|extern|friend|const|volatile|unsigned|signed|long|short|struct|enum|typename|mutable)\s+)*`
	rustVis   = `(?:pub(?:\([^)]*\))?\s+)?`
)

func javascriptGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:             "javascript",
		Aliases:          []string{"js", "jsx", "node", "ecmascript"},
		Extensions:       []string{".js", ".jsx", ".mjs", ".cjs"},
		LineComments:     cStyleLine,
		BlockComments:    cStyleDocs,
		StringDelimiters: []string{`"`, `'`, "`"},
		Declarations: []DeclPattern{
			container(KindClass, 30, `^\s*`+jsExport+`class\s+(?P<name>`+jsIdent+`)`),
			decl(KindFunction, 25, ScopeAny, `^\s*(?:export\s+)?(?:const|let|var)\s+(?P<name>`+jsIdent+`)\s*=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*=>|`+jsIdent+`\s*=>)`),
			decl(KindFunction, 20, ScopeAny, `^\s*`+jsExport+`(?:async\s+)?function\s*\*?\s*(?P<name>`+jsIdent+`)\s*\(`),
			decl(KindMethod, 15, ScopeMember, `^\s*(?:static\s+)?(?:async\s+)?(?:(?:get|set)\s+)?\*?\s*(?P<name>#?`+jsIdent+`)\s*\(`),
			decl(KindConstant, 10, ScopeFile, `^\s*(?:export\s+)?const\s+(?P<name>`+jsIdent+`)\s*=`),
			decl(KindField, 5, ScopeMember, `^\s*(?:static\s+)?(?P<name>#?`+jsIdent+`)\s*(?:=|;|$)`),
		},
		Modifiers:         map[string]Visibility{"export": VisibilityExported},
		Keywords:          controlKeywords,
		Annotation:        regexp.MustCompile(`^\s*@[\w.]+(?:\(.*\))?\s*$`),
		ConstructorNames:  []string{"constructor"},
		DefaultVisibility: VisibilityPublic,
		PrivatePrefix:     "#",
	}
}

func typescriptGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:             "typescript",
		Aliases:          []string{"ts", "tsx"},
		Extensions:       []string{".ts", ".tsx", ".mts", ".cts"},
		LineComments:     cStyleLine,
		BlockComments:    cStyleDocs,
		StringDelimiters: []string{`"`, `'`, "`"},
		Declarations: []DeclPattern{
			container(KindInterface, 30, `^\s*(?:export\s+)?(?:declare\s+)?interface\s+(?P<name>`+jsIdent+`)`),
			container(KindEnum, 30, `^\s*(?:export\s+)?(?:declare\s+)?(?:const\s+)?enum\s+(?P<name>`+jsIdent+`)`),
			container(KindClass, 30, `^\s*`+jsExport+`(?:declare\s+)?(?:abstract\s+)?class\s+(?P<name>`+jsIdent+`)`),
			namespace(`^\s*(?:export\s+)?(?:declare\s+)?(?:namespace|module)\s+(?P<name>[\w.$]+)\s*\{`),
			decl(KindFunction, 25, ScopeAny, `^\s*(?:export\s+)?(?:const|let|var)\s+(?P<name>`+jsIdent+`)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|(?:<[^>]*>\s*)?\([^)]*\)\s*(?::\s*[^=]+)?=>|`+jsIdent+`\s*=>)`),
			decl(KindFunction, 20, ScopeAny, `^\s*`+jsExport+`(?:declare\s+)?(?:async\s+)?function\s*\*?\s*(?P<name>`+jsIdent+`)\s*(?:<[^>]*>)?\s*\(`),
			decl(KindMethod, 15, ScopeMember, `^\s*`+tsMembers+`\*?\s*(?P<name>#?`+jsIdent+`)\s*\??\s*(?:<[^>]*>)?\s*\(`),
			decl(KindConstant, 10, ScopeFile, `^\s*(?:export\s+)?(?:declare\s+)?const\s+(?P<name>`+jsIdent+`)\s*(?::[^=]+)?=`),
			decl(KindField, 5, ScopeMember, `^\s*`+tsMembers+`(?P<name>#?`+jsIdent+`)\s*[?!]?\s*(?::|=|;|,|$)`),
		},
		Modifiers: map[string]Visibility{
			"export":    VisibilityExported,
			"public":    VisibilityPublic,
			"private":   VisibilityPrivate,
			"protected": VisibilityInternal,
		},
		Keywords:          controlKeywords,
		Annotation:        regexp.MustCompile(`^\s*@[\w.]+(?:\(.*\))?\s*$`),
		ConstructorNames:  []string{"constructor"},
		DefaultVisibility: VisibilityPublic,
		PrivatePrefix:     "#",
	}
}

func javaGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:             "java",
		Extensions:       []string{".java"},
		LineComments:     cStyleLine,
		BlockComments:    cStyleDocs,
		StringDelimiters: []string{`"`, `'`},
		Declarations: []DeclPattern{
			container(KindInterface, 30, `^\s*`+javaMods+`@?interface\s+(?P<name>[A-Za-z_$][\w$]*)`),
			container(KindEnum, 30, `^\s*`+javaMods+`enum\s+(?P<name>[A-Za-z_$][\w$]*)`),
			container(KindClass, 30, `^\s*`+javaMods+`(?:class|record)\s+(?P<name>[A-Za-z_$][\w$]*)`),
			decl(KindConstant, 25, ScopeDeclared, `^\s*`+javaMods+`(?:static\s+final|final\s+static)\s+`+javaType+`\s+(?P<name>[A-Za-z_$][\w$]*)\s*(?:=|;)`),
			decl(KindMethod, 20, ScopeMember, `^\s*`+javaMods+`(?:<[^>]+>\s+)?`+javaType+`\s+(?P<name>[A-Za-z_$][\w$]*)\s*\(`),
			constructor(18, `^\s*`+javaMods+`(?P<name>[A-Za-z_$][\w$]*)\s*\(`),
			decl(KindField, 10, ScopeMember, `^\s*`+javaMods+javaType+`\s+(?P<name>[A-Za-z_$][\w$]*)\s*(?:=.*)?[;,]\s*$`),
		},
		Modifiers: map[string]Visibility{
			"public":    VisibilityPublic,
			"private":   VisibilityPrivate,
			"protected": VisibilityInternal,
		},
		Keywords:          controlKeywords,
		Annotation:        regexp.MustCompile(`^\s*@[\w.]+(?:\(.*\))?\s*$`),
		DefaultVisibility: VisibilityInternal,
		MemberVisibility:  VisibilityInternal,
	}
}

func cGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:             "c",
		Extensions:       []string{".c", ".h"},
		LineComments:     cStyleLine,
		BlockComments:    cStyleDocs,
		StringDelimiters: []string{`"`, `'`},
		Declarations: []DeclPattern{
			namespace(`^\s*extern\s+"C"\s*\{`),
			container(KindStruct, 30, `^\s*(?:typedef\s+)?(?:struct|union)\s+(?P<name>[A-Za-z_]\w*)[^;]*$`),
			container(KindEnum, 30, `^\s*(?:typedef\s+)?enum\s+(?P<name>[A-Za-z_]\w*)[^;]*$`),
			decl(KindFunction, 26, ScopeAny, `^\s*#\s*define\s+(?P<name>[A-Za-z_]\w*)\(`),
			decl(KindConstant, 25, ScopeAny, `^\s*#\s*define\s+(?P<name>[A-Za-z_]\w*)(?:\s|$)`),
			decl(KindConstant, 22, ScopeFile, `^\s*(?:static\s+)?const\s+[\w\s\*]+?\b(?P<name>[A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*=`),
			decl(KindFunction, 20, ScopeFile, `^\s*`+cQuals+`[A-Za-z_]\w*(?:\s*\*+\s*|\s+)(?:\*+\s*)?(?P<name>[A-Za-z_]\w*)\s*\(`),
			decl(KindField, 10, ScopeMember, `^\s*`+cQuals+`[A-Za-z_]\w*(?:\s*\*+\s*|\s+)(?:\*+\s*)?(?P<name>[A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*(?::\s*\d+\s*)?(?:=[^;]*)?;`),
		},
		Modifiers:         map[string]Visibility{"static": VisibilityPrivate},
		Keywords:          controlKeywords,
		DefaultVisibility: VisibilityPublic,
	}
}

func cppGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:             "cpp",
		Aliases:          []string{"c++", "cxx", "cc"},
		Extensions:       []string{".cpp", ".cc", ".cxx", ".c++", ".hpp", ".hh", ".hxx", ".h++"},
		LineComments:     []CommentMarker{{Prefix: "///", Doc: true}, {Prefix: "//!", Doc: true}, {Prefix: "//"}},
		BlockComments:    []BlockDelimiter{{Open: "/**", Close: "*/", Doc: true, Gutter: "*"}, {Open: "/*!", Close: "*/", Doc: true, Gutter: "*"}, {Open: "/*", Close: "*/", Gutter: "*"}},
		StringDelimiters: []string{`"`, `'`},
		Declarations: []DeclPattern{
			namespace(`^\s*(?:inline\s+)?namespace\s*(?P<name>[\w:]*)\s*\{?\s*$`),
			namespace(`^\s*extern\s+"C"\s*\{`),
			container(KindClass, 30, `^\s*(?:template\s*<.*>\s*)?class\s+(?:[A-Z_]+\s+)?(?P<name>[A-Za-z_]\w*)[^;]*$`),
			container(KindStruct, 30, `^\s*(?:template\s*<.*>\s*)?(?:typedef\s+)?(?:struct|union)\s+(?:[A-Z_]+\s+)?(?P<name>[A-Za-z_]\w*)[^;]*$`),
			container(KindEnum, 30, `^\s*(?:typedef\s+)?enum\s+(?:class\s+|struct\s+)?(?P<name>[A-Za-z_]\w*)[^;]*$`),
			decl(KindFunction, 26, ScopeAny, `^\s*#\s*define\s+(?P<name>[A-Za-z_]\w*)\(`),
			decl(KindConstant, 25, ScopeAny, `^\s*#\s*define\s+(?P<name>[A-Za-z_]\w*)(?:\s|$)`),
			decl(KindConstant, 22, ScopeDeclared, `^\s*(?:static\s+)?(?:inline\s+)?(?:constexpr|const)\s+[\w:<>,\s\*&]+?\b(?P<name>[A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*(?:=|\{)`),
			decl(KindFunction, 20, ScopeDeclared, `^\s*(?:template\s*<.*>\s*)?`+cppQuals+`(?:[\w:]+(?:<.*>)?(?:\s*[\*&]+\s*|\s+))?(?P<name>~?[A-Za-z_]\w*(?:::~?[A-Za-z_]\w*)*)\s*\(`),
			decl(KindField, 10, ScopeMember, `^\s*`+cppQuals+`[\w:]+(?:<.*>)?(?:\s*[\*&]+\s*|\s+)(?P<name>[A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*(?::\s*\d+\s*)?(?:=[^;]*|\{[^;]*\})?;`),
		},
		Modifiers:         map[string]Visibility{"static": VisibilityPrivate},
		Keywords:          append([]string{"public", "private", "protected", "operator", "template", "using", "typedef"}, controlKeywords...),
		Annotation:        regexp.MustCompile(`^\s*\[\[.*\]\]\s*$`),
		DefaultVisibility: VisibilityPublic,
		MemberVisibility:  VisibilityPrivate,
	}
}

func csharpGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:             "csharp",
		Aliases:          []string{"cs", "c#"},
		Extensions:       []string{".cs"},
		LineComments:     []CommentMarker{{Prefix: "///", Doc: true}, {Prefix: "//"}},
		BlockComments:    cStyleDocs,
		StringDelimiters: []string{`"`, `'`},
		Declarations: []DeclPattern{
			namespace(`^\s*namespace\s+(?P<name>[\w.]+)`),
			container(KindInterface, 30, `^\s*`+csMods+`interface\s+(?P<name>[A-Za-z_]\w*)`),
			container(KindEnum, 30, `^\s*`+csMods+`enum\s+(?P<name>[A-Za-z_]\w*)`),
			container(KindStruct, 30, `^\s*`+csMods+`(?:readonly\s+)?(?:ref\s+)?(?:record\s+)?struct\s+(?P<name>[A-Za-z_]\w*)`),
			container(KindClass, 30, `^\s*`+csMods+`(?:class|record)\s+(?P<name>[A-Za-z_]\w*)`),
			decl(KindConstant, 25, ScopeMember, `^\s*`+csMods+`const\s+`+csType+`\s+(?P<name>[A-Za-z_]\w*)\s*=`),
			decl(KindMethod, 20, ScopeMember, `^\s*`+csMods+csType+`\s+(?P<name>[A-Za-z_]\w*)\s*(?:<[^>]*>)?\s*\(`),
			constructor(18, `^\s*`+csMods+`(?P<name>[A-Za-z_]\w*)\s*\(`),
			decl(KindField, 12, ScopeMember, `^\s*`+csMods+csType+`\s+(?P<name>[A-Za-z_]\w*)\s*(?:\{|=>|$)`),
			decl(KindField, 10, ScopeMember, `^\s*`+csMods+csType+`\s+(?P<name>[A-Za-z_]\w*)\s*(?:=[^;]*)?;`),
		},
		Modifiers: map[string]Visibility{
			"public":    VisibilityPublic,
			"private":   VisibilityPrivate,
			"protected": VisibilityInternal,
			"internal":  VisibilityInternal,
		},
		Keywords:          append([]string{"using", "lock", "foreach", "get", "set"}, controlKeywords...),
		Annotation:        regexp.MustCompile(`^\s*\[[^\]]*\]\s*$`),
		DefaultVisibility: VisibilityInternal,
		MemberVisibility:  VisibilityPrivate,
	}
}

func goGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:             "go",
		Aliases:          []string{"golang"},
		Extensions:       []string{".go"},
		LineComments:     cStyleLine,
		BlockComments:    []BlockDelimiter{{Open: "/*", Close: "*/"}},
		StringDelimiters: []string{`"`, `'`, "`"},
		Declarations: []DeclPattern{
			container(KindStruct, 30, `^type\s+(?P<name>[A-Za-z_]\w*)(?:\[[^\]]*\])?\s+struct\b`),
			container(KindInterface, 30, `^type\s+(?P<name>[A-Za-z_]\w*)(?:\[[^\]]*\])?\s+interface\b`),
			decl(KindMethod, 30, ScopeFile, `^func\s*\([^)]*\)\s*(?P<name>[A-Za-z_]\w*)`),
			decl(KindFunction, 20, ScopeFile, `^func\s+(?P<name>[A-Za-z_]\w*)`),
			decl(KindConstant, 20, ScopeFile, `^const\s+(?P<name>[A-Za-z_]\w*)`),
			decl(KindMethod, 15, ScopeMember, `^\s+(?P<name>[A-Za-z_]\w*)\s*\(`),
			decl(KindField, 10, ScopeMember, `^\s+(?P<name>[A-Za-z_]\w*)\s+[^\s(=,]`),
		},
		ExportByCase: true,
	}
}

func rustGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:       "rust",
		Aliases:    []string{"rs"},
		Extensions: []string{".rs"},
		LineComments: []CommentMarker{
			{Prefix: "///", Doc: true},
			{Prefix: "//!", Doc: true, Inner: true},
			{Prefix: "//"},
		},
		BlockComments: []BlockDelimiter{
			{Open: "/**", Close: "*/", Doc: true, Gutter: "*"},
			{Open: "/*!", Close: "*/", Doc: true, Inner: true, Gutter: "*"},
			{Open: "/*", Close: "*/", Gutter: "*"},
		},
		StringDelimiters: []string{`"`},
		Declarations: []DeclPattern{
			func() DeclPattern {
				p := namespace(`^\s*(?:unsafe\s+)?impl(?:\s*<.*?>)?\s+(?:.+?\s+for\s+)?(?P<name>[A-Za-z_]\w*)`)
				p.Container = true
				return p
			}(),
			namespace(`^\s*` + rustVis + `mod\s+(?P<name>[A-Za-z_]\w*)\s*\{`),
			container(KindStruct, 30, `^\s*`+rustVis+`(?:struct|union)\s+(?P<name>[A-Za-z_]\w*)`),
			container(KindEnum, 30, `^\s*`+rustVis+`enum\s+(?P<name>[A-Za-z_]\w*)`),
			container(KindInterface, 30, `^\s*`+rustVis+`(?:unsafe\s+)?trait\s+(?P<name>[A-Za-z_]\w*)`),
			decl(KindConstant, 25, ScopeDeclared, `^\s*`+rustVis+`(?:const|static)\s+(?:mut\s+)?(?P<name>[A-Za-z_]\w*)\s*:`),
			decl(KindFunction, 20, ScopeAny, `^\s*`+rustVis+`(?:(?:const|async|unsafe|default|extern(?:\s+"[^"]*")?)\s+)*fn\s+(?P<name>[A-Za-z_]\w*)`),
			decl(KindField, 10, ScopeMember, `^\s*`+rustVis+`(?P<name>[a-z_]\w*)\s*:\s*[^:\s]`),
		},
		Modifiers: map[string]Visibility{
			"pub":        VisibilityPublic,
			"pub(crate)": VisibilityInternal,
			"pub(super)": VisibilityInternal,
			"pub(self)":  VisibilityPrivate,
		},
		Keywords:          []string{"if", "else", "for", "while", "loop", "match", "return", "let"},
		Annotation:        regexp.MustCompile(`^\s*#!?\[.*\]\s*$`),
		DefaultVisibility: VisibilityPrivate,
	}
}

func pythonGrammar() *LanguageGrammar {
	return &LanguageGrammar{
		Name:         "python",
		Aliases:      []string{"py", "python3"},
		Extensions:   []string{".py", ".pyi", ".pyw"},
		LineComments: []CommentMarker{{Prefix: "#"}},
		BlockComments: []BlockDelimiter{
			{Open: `"""`, Close: `"""`, Doc: true, Trailing: true},
			{Open: `'''`, Close: `'''`, Doc: true, Trailing: true},
		},
		StringDelimiters: []string{`"`, `'`},
		Declarations: []DeclPattern{
			container(KindClass, 30, `^\s*class\s+(?P<name>[A-Za-z_]\w*)`),
			decl(KindFunction, 20, ScopeAny, `^\s*(?:async\s+)?def\s+(?P<name>[A-Za-z_]\w*)`),
			decl(KindConstant, 10, ScopeFile, `^(?P<name>[A-Z][A-Z0-9_]*)\s*(?::[^=]+)?=[^=]`),
			decl(KindField, 8, ScopeMember, `^\s+(?P<name>[A-Za-z_]\w*)\s*:\s*[\w\[\]., |]+(?:=.*)?$`),
			decl(KindField, 7, ScopeMember, `^\s+(?P<name>[A-Za-z_]\w*)\s*=[^=]`),
		},
		Keywords:          []string{"if", "elif", "else", "for", "while", "with", "return", "print", "assert", "pass"},
		Annotation:        regexp.MustCompile(`^\s*@`),
		IndentScoped:      true,
		DocstringFollows:  true,
		DefaultVisibility: VisibilityPublic,
		PrivatePrefix:     "_",
	}
}

// builtinGrammars returns fresh copies of the built-in grammars
func builtinGrammars() []*LanguageGrammar {
	return []*LanguageGrammar{
		cGrammar(),
		cppGrammar(),
		csharpGrammar(),
		goGrammar(),
		javaGrammar(),
		javascriptGrammar(),
		pythonGrammar(),
		rustGrammar(),
		typescriptGrammar(),
	}
}
