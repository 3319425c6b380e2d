// Convoscope inspects a single chatbot conversation: it imports and
// normalizes transcripts, scores them, links the analysis back to the
// messages it cites and drives the highlight shown when a citation is
// followed.
//
// Usage:
//
//	convoscope serve
//	convoscope validate conversation.json
//	convoscope analyze conversation.json --detailed=false
//	convoscope export session.jsonl --out-dir ./exports
package main

func main() {
	Execute()
}
