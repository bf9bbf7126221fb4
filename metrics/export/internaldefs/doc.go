// Package internaldefs holds the metric naming tables shared by the
// exporters. It is not intended for direct use.
package internaldefs
