// Package main provides the kiln command: train a small image classifier,
// checkpoint it and reload it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/born-ml/kiln/model"
	"github.com/born-ml/kiln/nn"
	"github.com/born-ml/kiln/optim"
)

const version = "v0.1.0"

func main() {
	dataDir := flag.String("data", "", "Directory containing MNIST IDX files (empty = synthetic data)")
	maxSamples := flag.Int("samples", 2000, "Max samples to load (0 = all)")
	arch := flag.String("arch", "cnn", "Model architecture: cnn or mlp")
	optName := flag.String("optimizer", "adam", "Optimizer: adam, sgd, rmsprop or adagrad")
	epochs := flag.Int("epochs", 5, "Number of training epochs")
	batchSize := flag.Int("batch", 32, "Batch size for training")
	lr := flag.Float64("lr", 0.001, "Learning rate")
	valFraction := flag.Float64("val", 0.2, "Fraction of samples held out for validation")
	seed := flag.Int64("seed", 42, "Random seed")
	workers := flag.Int("workers", runtime.NumCPU(), "Worker goroutines per layer kernel (1 = serial)")
	monitor := flag.String("monitor", "val_accuracy", "Metric for best-checkpoint saving")
	savePath := flag.String("save", "kiln-model.kiln", "Where to save the best model")
	loadPath := flag.String("load", "", "Resume from a saved model")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("kiln %s\n", version)
		return
	}

	rng := rand.New(rand.NewSource(*seed))
	var data *dataset
	if *dataDir == "" {
		fmt.Println("Using synthetic data (horizontal bar patterns)")
		data = syntheticDigits(max(*maxSamples, 10), 28, 10, rng)
	} else {
		fmt.Printf("Loading MNIST data from: %s\n", *dataDir)
		var err error
		data, err = loadMNIST(*dataDir, true, *maxSamples)
		if err != nil {
			log.Fatalf("Failed to load MNIST: %v", err)
		}
	}
	train, val, err := data.split(*valFraction)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("   Train: %d samples", train.len())
	if val != nil {
		fmt.Printf(", Val: %d samples", val.len())
	}
	fmt.Println()

	m := model.New(
		model.WithInputShape(data.images.Shape()),
		model.WithSeed(*seed),
		model.WithName(*arch),
		model.WithWorkers(*workers),
	)
	if err := addLayers(m, *arch, data.classes); err != nil {
		log.Fatalf("Failed to build model: %v", err)
	}
	opt, err := newOptimizer(*optName, float32(*lr))
	if err != nil {
		log.Fatal(err)
	}
	if err := m.Compile(opt); err != nil {
		log.Fatalf("Failed to compile model: %v", err)
	}
	printSummary(m)

	if *loadPath != "" {
		if err := m.Load(*loadPath); err != nil {
			log.Fatalf("Failed to load %s: %v", *loadPath, err)
		}
		fmt.Printf("Resumed from %s at step %d\n", *loadPath, m.Optimizer().Step())
	}

	metric, err := model.ParseMetric(*monitor)
	if err != nil {
		log.Fatal(err)
	}
	if val == nil && (metric == model.ValLoss || metric == model.ValAccuracy) {
		metric = model.TrainLoss
	}
	best := model.NewBestCheckpoint(m, metric, *savePath)

	source := model.NewSliceSource(train.images, train.labels, *batchSize)
	if val != nil {
		source.WithValidation(val.images, val.labels)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("\nTraining: optimizer=%s lr=%g batch=%d epochs=%d\n", opt.Name(), *lr, *batchSize, *epochs)
	_, err = m.Fit(ctx, source, *epochs, best.Callback(), func(s model.EpochStats) error {
		fmt.Printf("Epoch %2d/%d: Loss=%.4f, Train Acc=%.2f%%", s.Epoch, *epochs, s.TrainLoss, s.TrainAccuracy*100)
		if s.HasValidation {
			fmt.Printf(", Val Loss=%.4f, Val Acc=%.2f%%", s.ValLoss, s.ValAccuracy*100)
		}
		fmt.Printf(" (%s)\n", s.Duration.Round(time.Millisecond))
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Fatalf("Training failed: %v", err)
		}
		fmt.Println("Interrupted")
	}

	if best.Saves() == 0 {
		fmt.Println("No checkpoint written")
		return
	}
	value, epoch := best.Best()
	fmt.Printf("\nBest %s=%.4f at epoch %d, saved to %s\n", metric, value, epoch, best.Path())

	if err := m.Load(best.Path()); err != nil {
		log.Fatalf("Failed to reload %s: %v", best.Path(), err)
	}
	eval := train
	if val != nil {
		eval = val
	}
	loss, acc := m.Evaluate(eval.images, eval.labels)
	fmt.Printf("Reloaded model: Loss=%.4f, Accuracy=%.2f%%\n", loss, acc*100)
}

// addLayers appends the layers of the named architecture.
func addLayers(m *model.Sequential, arch string, classes int) error {
	var layers []nn.Layer
	switch arch {
	case "cnn":
		layers = []nn.Layer{
			nn.NewConv2D(nn.Conv2DConfig{Filters: 8, KernelSize: 3, Padding: nn.Same}),
			nn.NewBatchNorm(nn.DefaultBatchNormConfig()),
			nn.NewReLU(),
			nn.NewMaxPool2D(2, 2),
			nn.NewConv2D(nn.Conv2DConfig{Filters: 16, KernelSize: 3}),
			nn.NewReLU(),
			nn.NewMaxPool2D(2, 2),
			nn.NewFlatten(),
			nn.NewDense(nn.DenseConfig{Units: 64}),
			nn.NewReLU(),
			nn.NewDropout(0.25),
			nn.NewDense(nn.DenseConfig{Units: classes}),
			nn.NewSoftmax(),
		}
	case "mlp":
		layers = []nn.Layer{
			nn.NewFlatten(),
			nn.NewDense(nn.DenseConfig{Units: 128}),
			nn.NewBatchNorm(nn.DefaultBatchNormConfig()),
			nn.NewLeakyReLU(0.01),
			nn.NewDense(nn.DenseConfig{Units: 64}),
			nn.NewMish(),
			nn.NewDense(nn.DenseConfig{Units: classes}),
			nn.NewSoftmax(),
		}
	default:
		return fmt.Errorf("unknown architecture %q (want cnn or mlp)", arch)
	}
	for _, l := range layers {
		if err := m.Add(l); err != nil {
			return err
		}
	}
	return nil
}

func newOptimizer(name string, lr float32) (optim.Optimizer, error) {
	switch strings.ToLower(name) {
	case "adam":
		return optim.NewAdam(optim.AdamConfig{LearningRate: lr}), nil
	case "sgd":
		return optim.NewSGD(optim.SGDConfig{LearningRate: lr, Momentum: 0.9}), nil
	case "rmsprop":
		return optim.NewRMSprop(optim.RMSpropConfig{LearningRate: lr}), nil
	case "adagrad":
		return optim.NewAdaGrad(optim.AdaGradConfig{LearningRate: lr}), nil
	}
	return nil, fmt.Errorf("unknown optimizer %q", name)
}

func printSummary(m *model.Sequential) {
	fmt.Printf("\nModel %q:\n", m.Name())
	for _, info := range m.Summary() {
		fmt.Printf("   %-16s %-22s -> %-22s %8d params\n",
			info.Name, info.InputShape, info.OutputShape, info.Parameters)
	}
	fmt.Printf("   Total: %d trainable parameters\n", m.NumParameters())
}
