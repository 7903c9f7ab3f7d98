package features

// Matrix is a row-major frames x dims feature matrix.
type Matrix struct {
	Frames int
	Dims   int
	Data   []float32
}

func NewMatrix(frames, dims int) *Matrix {
	return &Matrix{
		Frames: frames,
		Dims:   dims,
		Data:   make([]float32, frames*dims),
	}
}

// Row returns frame i as a sub-slice of Data.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dims : (i+1)*m.Dims]
}

func (m *Matrix) Empty() bool {
	return m == nil || m.Frames == 0
}

// Valid checks the len(Data) == Frames*Dims invariant.
func (m *Matrix) Valid() bool {
	return m != nil && m.Frames >= 0 && m.Dims > 0 && len(m.Data) == m.Frames*m.Dims
}
