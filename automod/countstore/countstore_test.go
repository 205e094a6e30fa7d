package countstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "owner-content", "user1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "owner-content", "user1"))
	assert.NoError(cs.Increment(ctx, "owner-content", "user1"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "owner-content", "user1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	// other values in the same namespace are independent
	c, err = cs.GetCount(ctx, "owner-content", "user2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)

	c, err = cs.GetCountDistinct(ctx, "rule-targets", "rule1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.IncrementDistinct(ctx, "rule-targets", "rule1", "post/1"))
	assert.NoError(cs.IncrementDistinct(ctx, "rule-targets", "rule1", "post/1"))
	assert.NoError(cs.IncrementDistinct(ctx, "rule-targets", "rule1", "post/2"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCountDistinct(ctx, "rule-targets", "rule1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}
}

func TestMemCountStoreIncrementPeriod(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()
	assert.NoError(cs.IncrementPeriod(ctx, "quota", "ban", PeriodDay))

	c, err := cs.GetCount(ctx, "quota", "ban", PeriodDay)
	assert.NoError(err)
	assert.Equal(1, c)

	c, err = cs.GetCount(ctx, "quota", "ban", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestValidPeriod(t *testing.T) {
	assert := assert.New(t)

	assert.True(ValidPeriod(PeriodHour))
	assert.True(ValidPeriod(PeriodDay))
	assert.True(ValidPeriod(PeriodTotal))
	assert.False(ValidPeriod("week"))
	assert.False(ValidPeriod(""))
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	var wg sync.WaitGroup
	fnInc := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			assert.NoError(cs.IncrementDistinct(ctx, name, name, val))
		}
	}
	fnRead := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			_, err := cs.GetCount(ctx, name, val, PeriodTotal)
			assert.NoError(err)
		}
	}
	wg.Add(6)
	go fnInc("test1", "val1", 10)
	go fnInc("test1", "val1", 10)
	go fnRead("test1", "val1", 10)
	go fnInc("test2", "val2", 6)
	go fnInc("test2", "val2", 6)
	go fnRead("test2", "val2", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "test2", "val2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)

	c, err = cs.GetCountDistinct(ctx, "test1", "test1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}
