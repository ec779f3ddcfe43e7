// Package grid defines the core data model for the gridloom engine.
//
// The model is a four-level ownership tree:
//
//	Vertical → Sheet → {Column, Row, Agent, HTTPRequest, WorkflowConfig}
//
// Sheets reference each other only by id. A Column may carry a LinkedColumn
// descriptor pointing at another sheet's column; that reference is weak and
// non-owning, so deleting the source sheet leaves a dangling id which the
// recalculation layer degrades to an in-cell error marker, never a crash.
//
// Cell values are a sealed scalar type (String, Number, Null). A missing key
// in a Row is distinct from Null and from the empty string: absence means
// "this row has never had a value for this column".
//
// All mutation of this model happens through the gridstore package's single
// updater choke point; the types here are plain data plus lookup helpers and
// are not internally synchronized.
package grid
