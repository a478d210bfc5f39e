package worker

import (
	"fractalexplorer/fractal"
	"fractalexplorer/task"
)

// Processor fills in task results. It owns its engine and color mapper and must not be shared between goroutines.
type Processor struct {
	colorMapper    fractal.ColorMapper
	configured     bool
	engine         fractal.Engine
	request        fractal.RenderRequest
	tasksCompleted int
}

func NewProcessor() Processor {
	return Processor{}
}

func (p *Processor) TasksCompleted() int {
	return p.tasksCompleted
}

func (p *Processor) configure(request fractal.RenderRequest) {
	if p.configured && p.request == request {
		return
	}
	p.colorMapper = request.ColorMapper()
	p.engine = request.Engine()
	p.request = request
	p.configured = true
}

// Process maps, iterates and colors every remaining pixel of the task
func (p *Processor) Process(t *task.Task) {
	p.configure(t.Request)
	viewport := t.Request.Viewport
	for {
		point, err := t.GetNextTask()
		if err != nil {
			break
		}
		result := p.engine.Iterate(viewport.PointAt(point.X, point.Y))
		t.AddResult(task.Pixel{
			Color:  p.colorMapper.Color(result, t.Request.MaxIterations),
			Column: point.X,
			Row:    point.Y,
		})
	}
	p.tasksCompleted++
}
