package keylock

import "sync"

// KeyedMutex выдаёт мьютекс на строковый ключ. Используется для
// сериализации операций леджера и справочника по конкретному мерчанту:
// проверка лимита и последующая мутация баланса должны видеть один
// консистентный снимок.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New создаёт пустой набор ключевых мьютексов.
func New() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock блокирует мьютекс ключа, создавая его при первом обращении,
// и возвращает функцию разблокировки. Мьютексы не удаляются: их число
// ограничено количеством мерчантов за время жизни процесса.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
