package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig 用于配置LRU缓存的行为。
type CacheConfig struct {
	// Capacity 是缓存的最大元素数量。如果为0，则不限制数量。
	Capacity int
	// MaxWeight 是缓存中所有元素的最大权重总和。如果为0，则不限制权重。
	MaxWeight int
	// TTL 是元素的存活时间。如果为0，则元素永不过期。
	TTL time.Duration
	// Now 返回当前时间，为空时使用 time.Now。测试中用于控制过期。
	Now func() time.Time
	// OnEvict 在元素因容量、权重或过期被移除时调用 (持有锁期间调用，不要在其中访问缓存)。
	OnEvict func(key any)
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	weight     int
	expiration time.Time
}

// LRUCache 是一个支持泛型、可配置且线程安全的LRU缓存。
type LRUCache[K comparable, V any] struct {
	config        CacheConfig
	ll            *list.List
	cache         map[K]*list.Element
	currentWeight int
	lock          sync.Mutex
}

// NewWithConfig 使用指定的配置创建一个LRU缓存实例。
func NewWithConfig[K comparable, V any](config CacheConfig) (*LRUCache[K, V], error) {
	if config.Capacity <= 0 && config.MaxWeight <= 0 {
		return nil, fmt.Errorf("必须设置 Capacity 或 MaxWeight 中的至少一个")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &LRUCache[K, V]{
		config: config,
		ll:     list.New(),
		cache:  make(map[K]*list.Element),
	}, nil
}

// Get 根据键获取一个值，过期的元素在这里被动淘汰。
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	var zero V
	element, ok := c.cache[key]
	if !ok {
		return zero, false
	}
	e := element.Value.(*entry[K, V])
	if c.expired(e) {
		c.removeElement(element, true)
		return zero, false
	}
	c.ll.MoveToFront(element)
	return e.value, true
}

// GetOrPut 返回已有的值；不存在时调用 create 生成并以权重 1 写入。
// create 在持有锁期间执行，必须是廉价且不会回调缓存的函数。
func (c *LRUCache[K, V]) GetOrPut(key K, create func() V) V {
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, ok := c.cache[key]; ok {
		e := element.Value.(*entry[K, V])
		if !c.expired(e) {
			c.ll.MoveToFront(element)
			return e.value
		}
		c.removeElement(element, true)
	}
	value := create()
	c.insert(key, value, 1)
	return value
}

// Put 向缓存中添加或更新一个键值对，并指定其权重。
// 如果使用基于容量的淘汰，可以为 weight 传入 1。
func (c *LRUCache[K, V]) Put(key K, value V, weight int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if element, ok := c.cache[key]; ok {
		e := element.Value.(*entry[K, V])
		c.currentWeight += weight - e.weight
		e.weight = weight
		e.value = value
		if c.config.TTL > 0 {
			e.expiration = c.config.Now().Add(c.config.TTL)
		}
		c.ll.MoveToFront(element)
		c.shrink()
		return
	}
	c.insert(key, value, weight)
}

// Remove 删除一个键，返回它是否存在。
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	element, ok := c.cache[key]
	if ok {
		c.removeElement(element, false)
	}
	return ok
}

// Purge 清空缓存。
func (c *LRUCache[K, V]) Purge() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.ll.Init()
	c.cache = make(map[K]*list.Element)
	c.currentWeight = 0
}

// Len 返回当前缓存中的条目数量 (包括尚未被动淘汰的过期条目)。
func (c *LRUCache[K, V]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ll.Len()
}

// Weight 返回当前缓存中所有元素的总权重。
func (c *LRUCache[K, V]) Weight() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.currentWeight
}

// 以下方法假设已持有锁。

func (c *LRUCache[K, V]) insert(key K, value V, weight int) {
	e := &entry[K, V]{key: key, value: value, weight: weight}
	if c.config.TTL > 0 {
		e.expiration = c.config.Now().Add(c.config.TTL)
	}
	c.cache[key] = c.ll.PushFront(e)
	c.currentWeight += weight
	c.shrink()
}

func (c *LRUCache[K, V]) expired(e *entry[K, V]) bool {
	return c.config.TTL > 0 && c.config.Now().After(e.expiration)
}

// shrink 一个大的新元素可能需要淘汰多个旧元素。
func (c *LRUCache[K, V]) shrink() {
	for c.isOverCapacity() {
		back := c.ll.Back()
		if back == nil {
			return
		}
		c.removeElement(back, true)
	}
}

func (c *LRUCache[K, V]) isOverCapacity() bool {
	if c.config.Capacity > 0 && c.ll.Len() > c.config.Capacity {
		return true
	}
	return c.config.MaxWeight > 0 && c.currentWeight > c.config.MaxWeight
}

func (c *LRUCache[K, V]) removeElement(element *list.Element, evicted bool) {
	c.ll.Remove(element)
	e := element.Value.(*entry[K, V])
	delete(c.cache, e.key)
	c.currentWeight -= e.weight
	if evicted && c.config.OnEvict != nil {
		c.config.OnEvict(e.key)
	}
}
