// Package settings holds the versioned, single-record Settings struct of
// §3 and the patch/diff machinery of §4.J: a patch expresses each field as
// Set(value), Reset (restore default), or NotSet (leave unchanged), and
// applying one to a Settings value yields both the new record and a Diff
// describing which indexing artifacts the pipeline must rebuild.
package settings
