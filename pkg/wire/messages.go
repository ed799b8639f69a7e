package wire

// MessageRequest carries a topic and, for sends, a message payload.
type MessageRequest struct {
	Topic   string
	Message string
}

func (m *MessageRequest) encode(pe *encoder) {
	pe.putString(m.Topic)
	pe.putString(m.Message)
}

func (m *MessageRequest) decode(pd *decoder) (err error) {
	if m.Topic, err = pd.getString(); err != nil {
		return err
	}
	if m.Message, err = pd.getString(); err != nil {
		return err
	}
	return nil
}

// MessageResponse is the generic status/message reply.
type MessageResponse struct {
	Status  string
	Message string
}

func (m *MessageResponse) encode(pe *encoder) {
	pe.putString(m.Status)
	pe.putString(m.Message)
}

func (m *MessageResponse) decode(pd *decoder) (err error) {
	if m.Status, err = pd.getString(); err != nil {
		return err
	}
	if m.Message, err = pd.getString(); err != nil {
		return err
	}
	return nil
}

// TopicRequest asks for a topic with an explicit partition count.
type TopicRequest struct {
	TopicName  string
	Partitions int32
}

func (t *TopicRequest) encode(pe *encoder) {
	pe.putString(t.TopicName)
	pe.putInt32(t.Partitions)
}

func (t *TopicRequest) decode(pd *decoder) (err error) {
	if t.TopicName, err = pd.getString(); err != nil {
		return err
	}
	if t.Partitions, err = pd.getInt32(); err != nil {
		return err
	}
	return nil
}

// InstanceResponse names the next worker chosen by the master. Both fields
// empty means the master had no instances to offer.
type InstanceResponse struct {
	Name    string
	Address string
}

func (i *InstanceResponse) encode(pe *encoder) {
	pe.putString(i.Name)
	pe.putString(i.Address)
}

func (i *InstanceResponse) decode(pd *decoder) (err error) {
	if i.Name, err = pd.getString(); err != nil {
		return err
	}
	if i.Address, err = pd.getString(); err != nil {
		return err
	}
	return nil
}

// RegistrationRequest registers a worker with the master.
type RegistrationRequest struct {
	NodeName string
	Hostname string
	Port     int32
}

func (r *RegistrationRequest) encode(pe *encoder) {
	pe.putString(r.NodeName)
	pe.putString(r.Hostname)
	pe.putInt32(r.Port)
}

func (r *RegistrationRequest) decode(pd *decoder) (err error) {
	if r.NodeName, err = pd.getString(); err != nil {
		return err
	}
	if r.Hostname, err = pd.getString(); err != nil {
		return err
	}
	if r.Port, err = pd.getInt32(); err != nil {
		return err
	}
	return nil
}

// emptyRequest is the body of parameterless RPCs.
type emptyRequest struct{}

func (emptyRequest) encode(pe *encoder) {}

func (emptyRequest) decode(pd *decoder) error { return nil }
