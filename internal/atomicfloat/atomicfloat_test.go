package atomicfloat

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAdd(t *testing.T) {
	Convey("When Add is called", t, func() {
		Convey("When multiple writers add concurrently", func() {
			af := New(0.0)
			numOps := 2000
			numWriters := 100

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters)
			adder := func() {
				<-start
				for i := 0; i < numOps; i++ {
					af.Add(1.0)
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go adder()
			}

			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.Read(), ShouldEqual, float64(numOps*numWriters))
		})

		Convey("When incrementers and decrementers race", func() {
			af := New(0.0)
			numOps := 2000
			numWriters := 100

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters * 2)
			incrementer := func() {
				<-start
				for i := 0; i < numOps; i++ {
					af.Add(1.0)
				}
				wg.Done()
			}
			decrementer := func() {
				<-start
				for i := 0; i < numOps; i++ {
					af.Add(-1.0)
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go incrementer()
				go decrementer()
			}

			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.Read(), ShouldEqual, float64(0.0))
		})
	})
}

func TestSet(t *testing.T) {
	Convey("When Set is called", t, func() {
		af := New(1.0)
		af.Set(42.0)
		So(af.Read(), ShouldEqual, 42.0)
	})
}
