// Package gis defines the data model shared by layer discovery, the
// geoprocessing toolbox and the batch workflows.
//
// A Container is a geodatabase-like bundle (a ".gdb" directory or a ".gpkg"
// file) holding Feature Classes directly or inside Feature Datasets. A Ref
// names one Feature Class; a Workspace names the container or dataset a
// listing call runs against. Workspaces are plain values passed to every
// Engine call, so there is no process-wide "current workspace".
//
// Key components:
//   - Ref / Workspace: feature class identity and listing scope
//   - FeatureClass / Feature: in-memory vector data backed by orb geometries
//   - Engine: the geometry-engine boundary consumed by the workflows
package gis
