package rbd

import "sync"

// DataPool recycles ModelData for one model across goroutines.
type DataPool struct {
	pool  sync.Pool
	model *Model
}

func NewDataPool(m *Model) *DataPool {
	p := &DataPool{model: m}
	p.pool.New = func() interface{} {
		return NewModelData(m)
	}
	return p
}

// Get returns ModelData matching the model's current size.
func (p *DataPool) Get() *ModelData {
	d := p.pool.Get().(*ModelData)
	if d.Check(p.model) != nil {
		return NewModelData(p.model)
	}
	return d
}

// Put returns d to the pool. Data for a different model size is dropped.
func (p *DataPool) Put(d *ModelData) {
	if d == nil || d.Check(p.model) != nil {
		return
	}
	d.Reset()
	p.pool.Put(d)
}
