package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"minikern/internal/idgen"
	"minikern/pkg/addrspace"
	"minikern/pkg/config"
	"minikern/pkg/filesys"
	"minikern/pkg/machine"
	"minikern/pkg/mm"
	"minikern/pkg/pcb"
	"minikern/pkg/thread"
	"minikern/pkg/tracing"
)

// Kernel errors.
var (
	ErrInvalidPid = errors.New("invalid pid")
	ErrNotChild   = errors.New("not a child of the caller")
)

// ExitListener observes every process termination.
type ExitListener func(pid, status int)

// Option configures a Kernel.
type Option func(k *Kernel)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) { k.log = logger }
}

// WithTracer sets the tracer used for system call spans.
func WithTracer(tracer *tracing.Tracer) Option {
	return func(k *Kernel) { k.tracer = tracer }
}

// WithExitListener registers fn to be called whenever a process exits or
// is killed.
func WithExitListener(fn ExitListener) Option {
	return func(k *Kernel) { k.exitListeners = append(k.exitListeners, fn) }
}

// Kernel owns the simulated machine and every kernel data structure.
type Kernel struct {
	// bootID identifies this kernel instance in logs.
	bootID string
	cfg    *config.Config
	log    *slog.Logger
	tracer *tracing.Tracer

	machine   *machine.Machine
	scheduler *thread.Scheduler
	frames    *mm.Manager
	pcbs      *pcb.Manager
	// memLock serializes free-frame checks with the allocations that
	// follow them.
	memLock *thread.Lock
	loader  *addrspace.Loader
	fs      filesys.FileSystem

	exitListeners []ExitListener
}

// New builds a kernel from cfg with executables served by fs. A nil cfg
// selects config.Default.
func New(cfg *config.Config, fs filesys.FileSystem, opts ...Option) (*Kernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if fs == nil {
		return nil, errors.New("file system is required")
	}

	k := &Kernel{
		bootID: idgen.New(),
		cfg:    cfg,
		fs:     fs,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.log == nil {
		k.log = slog.Default()
	}
	if k.tracer == nil {
		k.tracer = tracing.Noop()
	}
	k.log = k.log.With("boot", k.bootID)

	k.machine = machine.New(cfg.Machine.NumPhysPages, cfg.Machine.PageSize)
	k.machine.SetHandler(k.handleException)
	k.scheduler = thread.NewScheduler(k.machine, k.log)
	k.frames = mm.NewManager(cfg.Machine.NumPhysPages)
	k.pcbs = pcb.NewManager(cfg.Process.MaxProcesses)
	k.memLock = k.scheduler.NewLock("memory")
	k.loader = &addrspace.Loader{
		Machine:       k.machine,
		Frames:        k.frames,
		Lock:          k.memLock,
		UserStackSize: cfg.Process.UserStackSize,
	}

	k.log.Info("kernel initialized",
		"frames", cfg.Machine.NumPhysPages,
		"pageSize", cfg.Machine.PageSize,
		"maxProcesses", cfg.Process.MaxProcesses)
	return k, nil
}

// BootID returns the identifier of this kernel instance.
func (k *Kernel) BootID() string { return k.bootID }

// Machine returns the simulated machine.
func (k *Kernel) Machine() *machine.Machine { return k.machine }

// Scheduler returns the thread scheduler.
func (k *Kernel) Scheduler() *thread.Scheduler { return k.scheduler }

// Frames returns the physical page allocator.
func (k *Kernel) Frames() *mm.Manager { return k.frames }

// Processes returns the process registry.
func (k *Kernel) Processes() *pcb.Manager { return k.pcbs }

// StartProcess loads the program at path into a new process with no parent
// and makes its main thread runnable. It may be called before Run or from
// inside a kernel thread.
func (k *Kernel) StartProcess(path string) (int, error) {
	f, err := k.fs.Open(path)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	loader := k.loader
	if k.scheduler.Current() == nil {
		// Nothing runs yet, so the memory lock cannot be contended and
		// cannot be taken outside a thread either.
		boot := *k.loader
		boot.Lock = nil
		loader = &boot
	}
	space, err := loader.Load(f)
	if err != nil {
		return -1, fmt.Errorf("load %s: %w", path, err)
	}

	p := k.pcbs.Allocate()
	t := k.scheduler.NewThread(fmt.Sprintf("pid-%d", p.PID))
	p.Thread = t
	space.PCB = p
	t.Space = space

	t.Fork(func(int) {
		space.InitRegisters()
		space.RestoreState()
		k.machine.Run()
	}, p.PID)

	k.log.Info("process started", "pid", p.PID, "path", path, "pages", space.NumPages())
	return p.PID, nil
}

// Run executes user programs until one halts the machine, every process
// has finished, or ctx is done.
func (k *Kernel) Run(ctx context.Context) error {
	err := k.scheduler.Run(ctx)
	k.log.Info("kernel stopped",
		"ticks", k.machine.Ticks(),
		"switches", k.scheduler.Switches(),
		"freeFrames", k.frames.FreeCount())
	return err
}

// Shutdown flushes the tracer.
func (k *Kernel) Shutdown(ctx context.Context) error {
	return k.tracer.Shutdown(ctx)
}

// currentSpace returns the address space of the running process.
func (k *Kernel) currentSpace() *addrspace.AddrSpace {
	cur := k.scheduler.Current()
	if cur == nil {
		panic("kernel: no current thread")
	}
	space, ok := cur.Space.(*addrspace.AddrSpace)
	if !ok || space == nil {
		panic(fmt.Sprintf("kernel: thread %s has no user address space", cur.Name()))
	}
	return space
}

func (k *Kernel) notifyExit(pid, status int) {
	for _, fn := range k.exitListeners {
		fn(pid, status)
	}
}
