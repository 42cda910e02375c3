// Package metascan aggregates file and object metadata across
// heterogeneous storage backends. It walks object stores, hierarchical
// blob stores, document libraries and managed volumes, and normalizes
// everything it finds into one record shape with resolved ownership,
// merged tags and aggregate directory sizes.
//
// Scans read metadata only: listings, properties, tags and ACL owners.
// Object content is never fetched, and nothing is ever written to a
// backend.
//
// Key features:
//   - One normalized record shape across every backend family
//   - Owner resolution through an explicit precedence chain
//   - Aggregate directory sizes computed in a single traversal
//   - Per-call failure containment with a separate diagnostics channel
//   - Bounded concurrency with deterministic output order
//   - Root discovery or explicit root selection per backend
//
// Example usage:
//
//	agg := metascan.New(metascan.WithAccountRecords(true))
//
//	s3conn, err := s3.New(ctx, s3.Config{})
//	if err != nil {
//	    return err
//	}
//	agg.Register(s3conn)
//
//	report, err := agg.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, rec := range report.Records {
//	    fmt.Println(rec.Path, rec.SizeBytes, rec.Owner)
//	}
package metascan
