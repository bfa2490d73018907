// Package kmeans partitions the rows of a matrix into K groups with Lloyd's
// algorithm.
//
// Initialization is k-means++ (or uniform random rows) driven by a seeded
// source, so identical input, configuration and seed always yield the same
// labels. Several restarts are run and the one with the lowest inertia wins.
// Cluster ids carry no meaning beyond identity, and a cluster may end up
// empty when K exceeds the structure in the data.
package kmeans
