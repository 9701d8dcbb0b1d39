package ahafs

import (
	"bytes"
	"strconv"
)

// Event-producer return codes observed on the wire. Directory monitors
// report creations and deletions; file monitors report a producer-specific
// code for any content change.
const (
	CodeDirCreate  = "RC_FROM_EVPROD=1000"
	CodeDirDelete  = "RC_FROM_EVPROD=1002"
	CodeFileModify = "RC_FROM_EVPROD=1"
	CodeOverflow   = "BUF_WRAP"
)

// Record is one change record as framed on the wire:
//
//	BEGIN_WD=<wd>
//	<code>
//	BEGIN_EVPROD_INFO
//	<file name>
//	END_EVPROD_INFO
//	END_WD
//
// The EVPROD_INFO block is present only when the producer reports an
// affected file name.
type Record struct {
	WD       int
	Code     string
	FileName string
}

// render appends the record's wire form to w.
func (r Record) render(w *bytes.Buffer) {
	w.WriteString("BEGIN_WD=")
	w.WriteString(strconv.Itoa(r.WD))
	w.WriteByte('\n')
	w.WriteString(r.Code)
	w.WriteByte('\n')
	if r.FileName != "" {
		w.WriteString("BEGIN_EVPROD_INFO\n")
		w.WriteString(r.FileName)
		w.WriteByte('\n')
		w.WriteString("END_EVPROD_INFO\n")
	}
	w.WriteString("END_WD\n")
}

// wireSize returns the rendered size of the record in bytes.
func (r Record) wireSize() int {
	var w bytes.Buffer
	r.render(&w)
	return w.Len()
}
