// Package access resolves what a caller is allowed to do.
//
// The Aggregator flattens the permissions reachable from a set of roles in one
// app. The Filter applies those permissions, together with the superuser role
// and the self-access rule, to single records and to lists.
package access
