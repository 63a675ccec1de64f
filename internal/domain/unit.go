package domain

// WorkUnit is one (shape, raster, operator, output directory) combination.
// Key is the artifact file stem and is unique within a batch.
type WorkUnit struct {
	ShapePath  string   `json:"shape_path"`
	RasterPath string   `json:"raster_path"`
	Operator   Operator `json:"operator"`
	OutputDir  string   `json:"output_dir"`
	Key        string   `json:"key"`
}

// WorkBatch is the ordered list of units produced by the planner.
type WorkBatch struct {
	Units []WorkUnit
}

// Len returns the number of units in the batch.
func (b WorkBatch) Len() int { return len(b.Units) }

// Empty reports whether the batch has no work.
func (b WorkBatch) Empty() bool { return len(b.Units) == 0 }

// Shapes returns the shape paths aligned with Units.
func (b WorkBatch) Shapes() []string {
	out := make([]string, len(b.Units))
	for i, u := range b.Units {
		out[i] = u.ShapePath
	}
	return out
}

// Rasters returns the raster paths aligned with Units.
func (b WorkBatch) Rasters() []string {
	out := make([]string, len(b.Units))
	for i, u := range b.Units {
		out[i] = u.RasterPath
	}
	return out
}

// Operators returns the operators aligned with Units.
func (b WorkBatch) Operators() []Operator {
	out := make([]Operator, len(b.Units))
	for i, u := range b.Units {
		out[i] = u.Operator
	}
	return out
}

// OutputDirs returns the output directories aligned with Units.
func (b WorkBatch) OutputDirs() []string {
	out := make([]string, len(b.Units))
	for i, u := range b.Units {
		out[i] = u.OutputDir
	}
	return out
}
