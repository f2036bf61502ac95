package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two consecutive guards returning the same value can be merged:
	//   if a { return err }
	//   if b { return err }
	// => if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Not always wrong, but worth a look.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// stdout carries the MCP stdio transport, so nothing below cmd/ may print to it.
func stdout(m dsl.Matcher) {
	m.Match(`fmt.Print($*_)`, `fmt.Println($*_)`, `fmt.Printf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`stdout is the MCP transport; log through internal/infra/logging instead`)

	m.Match(`fmt.Fprint(os.Stdout, $*_)`, `fmt.Fprintln(os.Stdout, $*_)`, `fmt.Fprintf(os.Stdout, $*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`stdout is the MCP transport; log through internal/infra/logging instead`)
}
