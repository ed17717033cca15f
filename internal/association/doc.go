// Package association groups flat file lists into primary+associated clusters.
//
// Grouping runs four passes in priority order; a file claimed by an earlier
// pass is excluded from later ones:
//
//  1. Index-set collections: files sharing a normalized base name after
//     stripping known index suffixes (64-bit BWA variants collapse to their
//     base) form one collection when two or more are present.
//  2. Reference-store pairs: a reference source and its index sharing a
//     reference ID are paired 1:1.
//  3. Read-set clusters: files carrying the same read-set ID cluster around
//     the source1 slot.
//  4. Suffix-pair rules: a rule table pairs alignment/variant/sequence files
//     with their index, dictionary, and mate-pair counterparts by naming
//     convention. Object-storage naming associations are consulted first and
//     supplemented by the regex rules; duplicates are discarded.
//
// Files no pass claims become singleton groups with group type "single_file".
// Every input file appears in exactly one output group. Grouping the same
// input twice produces identical group membership.
package association
