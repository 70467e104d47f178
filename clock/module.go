package clock

// Driver作为app模块运行

func (d *Driver) Name() string {
	return "clock"
}

func (d *Driver) OnInit() error {
	return nil
}

// Run 阻塞直到Destroy
func (d *Driver) Run() {
	d.started.Store(true)
	d.run(nil)
}

func (d *Driver) Destroy() {
	d.Stop()
}
