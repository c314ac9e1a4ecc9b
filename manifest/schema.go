package manifest

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schemaSource constrains the decoded TOML document. Definitions are
// closed, so unknown tables and keys are rejected.
const schemaSource = `
#Manifest: {
	program?: {
		path?: string & !=""
	}
	run?: {
		mode?:  "buffer" | "console" | "ascii"
		input?: [...int]
	}
	amplifier?: {
		phases?:   [int, ...int]
		feedback?: bool
		search?:   bool
	}
	network?: {
		nodes?: int & >0 & <=4096
		nat?:   int & >=0
	}
	store?: {
		path?: string & !=""
	}
	server?: {
		addr?: string
	}
}
`

// Validate checks a decoded manifest document against the schema.
func Validate(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return err
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	v := ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return err
	}
	return def.Unify(v).Validate(cue.Concrete(true))
}
